package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/instagram"
	"instarchive/pkg/logger"
)

// Credentials are the session cookies of the archiving identity
type Credentials struct {
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Session returns the cookies in the form the Instagram client takes
func (c *Credentials) Session() *instagram.Session {
	return &instagram.Session{
		SessionID: c.SessionID,
		CSRFToken: c.CSRFToken,
		UserAgent: c.UserAgent,
	}
}

// Validate checks that the cookies needed for a logged-in session are set
func (c *Credentials) Validate() error {
	switch {
	case c == nil || c.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	case c.SessionID == "":
		return fmt.Errorf("%w: session ID is required", ErrInvalidCredentials)
	case c.CSRFToken == "":
		return fmt.Errorf("%w: CSRF token is required", ErrInvalidCredentials)
	}
	return nil
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for their username
	Store(creds *Credentials) error

	// Retrieve gets credentials for a specific username
	Retrieve(username string) (*Credentials, error)

	// Delete removes credentials for a specific username
	Delete(username string) error

	// Exists checks if credentials exist for a username
	Exists(username string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
	logger logger.Logger
	now    func() time.Time
}

// NewManager creates a credential manager over the system keyring (when
// available), an encrypted file in configDir and finally the session set
// in the configuration
func NewManager(configDir string, cfg config.InstagramConfig, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	var stores []CredentialStore
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	} else {
		log.WithError(err).Debug("System keyring unavailable")
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewConfigStore(cfg))

	return NewManagerWithStores(log, stores...), nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(log logger.Logger, stores ...CredentialStore) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{stores: stores, logger: log, now: time.Now}
}

// Store saves credentials in the first store that accepts them
func (m *Manager) Store(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	creds.LastModified = m.now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(creds)
		if err == nil {
			m.logger.InfoWithFields("Session stored", map[string]interface{}{
				"username": creds.Username,
				"store":    fmt.Sprintf("%T", store),
			})
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them. A missing
// session is an auth error telling the operator to log in.
func (m *Manager) Retrieve(username string) (*Credentials, error) {
	for _, store := range m.stores {
		creds, err := store.Retrieve(username)
		if err == nil && creds != nil {
			return creds, nil
		}
		if err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			m.logger.WithError(err).DebugWithFields("Credential store failed", map[string]interface{}{
				"store": fmt.Sprintf("%T", store),
			})
		}
	}
	return nil, errs.Wrap(errs.ErrorTypeAuth, ErrCredentialsNotFound,
		"no session stored for %s (run the login command)", username)
}

// Delete removes credentials from every store holding them
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, username)
}

// DefaultConfigDir returns the per-user directory for the encrypted session file
func DefaultConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "instarchive")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "instarchive")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "instarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "instarchive")
		}
	}

	return configDir, nil
}

// Masked returns a copy of the credentials with the cookies masked
func (c *Credentials) Masked() *Credentials {
	if c == nil {
		return nil
	}

	return &Credentials{
		Username:     c.Username,
		SessionID:    maskString(c.SessionID),
		CSRFToken:    maskString(c.CSRFToken),
		UserAgent:    c.UserAgent,
		LastModified: c.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
