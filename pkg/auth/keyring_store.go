package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "instarchive"

// KeyringStore keeps each account's session as a JSON secret in the
// system keychain, under the "instarchive" service.
type KeyringStore struct{}

// NewKeyringStore fails when the keychain rejects a probe write, so the
// manager can fall back to the encrypted file.
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "probe"
	if err := keyring.Set(keyringService, probe, probe); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func sessionKey(username string) string {
	return "session_" + username
}

// keyringErr maps a missing entry onto ErrCredentialsNotFound.
func keyringErr(op string, err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	return fmt.Errorf("keyring %s: %w", op, err)
}

func (k *KeyringStore) Store(creds *Credentials) error {
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}
	secret, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(keyringService, sessionKey(creds.Username), string(secret)); err != nil {
		return keyringErr("store", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(username string) (*Credentials, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	secret, err := keyring.Get(keyringService, sessionKey(username))
	if err != nil {
		return nil, keyringErr("retrieve", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(secret), &creds); err != nil {
		return nil, fmt.Errorf("corrupt keyring session for %s: %w", username, err)
	}
	return &creds, nil
}

func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}
	if err := keyring.Delete(keyringService, sessionKey(username)); err != nil {
		return keyringErr("delete", err)
	}
	return nil
}

func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}
	_, err := keyring.Get(keyringService, sessionKey(username))
	return err == nil
}
