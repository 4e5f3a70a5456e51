package auth

import "sync"

// MockStore is an in-memory CredentialStore. The *Error fields, when
// set, are returned by the matching operation before the map is touched.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]Credentials

	StoreError    error
	RetrieveError error
	DeleteError   error
}

func NewMockStore() *MockStore {
	return &MockStore{sessions: map[string]Credentials{}}
}

func (m *MockStore) Store(creds *Credentials) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	m.sessions[creds.Username] = *creds
	m.mu.Unlock()
	return nil
}

func (m *MockStore) Retrieve(username string) (*Credentials, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	m.mu.RLock()
	creds, ok := m.sessions[username]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &creds, nil
}

func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[username]
	return ok
}

// Count is the number of sessions held.
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
