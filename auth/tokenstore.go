package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Credentials is the persisted bearer credential and its expiry. A zero
// ExpiresAt means the server issued no expiry.
type Credentials struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the credential carries an expiry in the past.
func (c Credentials) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// TokenStore persists the bearer credential across restarts. Get must never
// fail: an unreadable store reads as "no credential".
type TokenStore interface {
	Get() Credentials
	Set(c Credentials) error
	Clear() error
}

// FileTokenStore keeps the credential in a JSON file.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore creates a store backed by the file at path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Get reads the stored credential. Missing or garbled files read as empty.
func (s *FileTokenStore) Get() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}
	}
	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		zap.S().Warnw("discarding unreadable token file",
			"path", s.path,
			"error", err,
		)
		return Credentials{}
	}
	return c
}

// Set writes the credential atomically with owner-only permissions.
func (s *FileTokenStore) Set(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the stored credential. Clearing an empty store is a no-op.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
