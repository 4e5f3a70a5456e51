package auth

import (
	"instarchive/pkg/config"
)

// ConfigStore serves the session cookies set in the configuration, which
// merges the config file, .env files and INSTARCHIVE_* variables. It is
// read-only.
type ConfigStore struct {
	cfg config.InstagramConfig
}

// NewConfigStore creates a store over the configured cookies
func NewConfigStore(cfg config.InstagramConfig) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

// Store is not supported for configured cookies
func (c *ConfigStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve returns the configured cookies under the requested username.
// The configuration does not say whose cookies they are.
func (c *ConfigStore) Retrieve(username string) (*Credentials, error) {
	if c.cfg.SessionID == "" || c.cfg.CSRFToken == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credentials{
		Username:  username,
		SessionID: c.cfg.SessionID,
		CSRFToken: c.cfg.CSRFToken,
		UserAgent: c.cfg.UserAgent,
	}, nil
}

// Delete is not supported for configured cookies
func (c *ConfigStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if cookies are configured
func (c *ConfigStore) Exists(username string) bool {
	return c.cfg.SessionID != "" && c.cfg.CSRFToken != ""
}
