package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
	"instarchive/pkg/archive"
)

const (
	saltSize       = 32
	keySize        = 32
	kdfRounds      = 100000
	envelopeFormat = 1
	passphraseEnv  = "INSTARCHIVE_PASSPHRASE"
	passphraseFile = ".passphrase"
)

// envelope is the on-disk form of the session file. Sealed holds the
// AES-GCM nonce followed by the ciphertext of the JSON session table.
type envelope struct {
	Format   int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"encrypted"`
	Modified time.Time `json:"modified"`
}

// sessionTable maps an account name to its saved session cookies.
type sessionTable map[string]Credentials

// EncryptedFileStore keeps sessions in a single passphrase-sealed file.
// It is the fallback when no system keyring is reachable.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// NewEncryptedFileStore opens the session file at path, creating its
// directory. An empty passphrase is taken from INSTARCHIVE_PASSPHRASE,
// or else from a generated .passphrase file next to the store.
func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	if passphrase == "" {
		var err error
		if passphrase, err = resolvePassphrase(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(creds *Credentials) error {
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	env, table, err := e.open()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		env, table = &envelope{}, sessionTable{}
	case err != nil:
		return err
	}
	table[creds.Username] = *creds
	return e.seal(env, table)
}

func (e *EncryptedFileStore) Retrieve(username string) (*Credentials, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, table, err := e.open()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}

	creds, ok := table[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &creds, nil
}

// Delete drops one session. The file goes away with its last entry.
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	env, table, err := e.open()
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return err
	}
	if _, ok := table[username]; !ok {
		return ErrCredentialsNotFound
	}

	delete(table, username)
	if len(table) == 0 {
		return os.Remove(e.path)
	}
	return e.seal(env, table)
}

func (e *EncryptedFileStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

// open reads and unseals the session file. A missing file is reported
// as fs.ErrNotExist.
func (e *EncryptedFileStore) open() (*envelope, sessionTable, error) {
	raw, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("corrupt session file %s: %w", e.path, err)
	}

	aead, err := newAEAD(e.passphrase, env.Salt)
	if err != nil {
		return nil, nil, err
	}
	n := aead.NonceSize()
	if len(env.Sealed) < n {
		return nil, nil, fmt.Errorf("corrupt session file %s: sealed data too short", e.path)
	}
	plain, err := aead.Open(nil, env.Sealed[:n], env.Sealed[n:], nil)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot unseal %s (wrong passphrase?): %w", e.path, err)
	}

	table := sessionTable{}
	if err := json.Unmarshal(plain, &table); err != nil {
		return nil, nil, fmt.Errorf("corrupt session table: %w", err)
	}
	return &env, table, nil
}

// seal encrypts table into env and writes it atomically. The salt is
// generated on first write and kept afterwards.
func (e *EncryptedFileStore) seal(env *envelope, table sessionTable) error {
	if len(env.Salt) == 0 {
		env.Salt = make([]byte, saltSize)
		if _, err := rand.Read(env.Salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	aead, err := newAEAD(e.passphrase, env.Salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	env.Format = envelopeFormat
	env.Sealed = aead.Seal(nonce, nonce, plain, nil)
	env.Modified = time.Now()

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}
	if err := archive.WriteFileAtomic(e.path, out, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// newAEAD derives the file key from passphrase and salt with PBKDF2.
func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, kdfRounds, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// resolvePassphrase prefers the environment, then a passphrase file in
// dir. Without either a random one is generated and written there.
func resolvePassphrase(dir string) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}

	path := filepath.Join(dir, passphraseFile)
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		return string(b), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	p := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(p), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return p, nil
}
