// Package storage persists access tokens across sessions, standing in for
// the browser local storage the comment widget traditionally uses.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenKey derives the storage key for a platform's access token.
func TokenKey(platform string) string {
	return "vssue." + strings.ToLower(platform) + ".access_token"
}

// TokenStore is a string-keyed persistence surface. One entry exists per
// platform integration; absence means unauthenticated.
type TokenStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore is an in-memory TokenStore. Nothing survives the process.
type MemoryStore struct {
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the stored value for key.
func (s *MemoryStore) Get(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) error {
	s.entries[key] = value
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(key string) error {
	delete(s.entries, key)
	return nil
}

// FileStore keeps entries in a JSON file. The file is rewritten on every
// mutation; reads always hit the disk so concurrent processes see each
// other's writes.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path. Parent
// directories are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStore places the store under the user config directory.
func DefaultFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return NewFileStore(filepath.Join(dir, "vssue", "tokens.json")), nil
}

// Get returns the stored value for key.
func (s *FileStore) Get(key string) (string, bool) {
	entries, err := s.load()
	if err != nil {
		return "", false
	}
	v, ok := entries[key]
	return v, ok
}

// Set stores value under key.
func (s *FileStore) Set(key, value string) error {
	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return s.save(entries)
}

// Delete removes the entry for key.
func (s *FileStore) Delete(key string) error {
	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode token store: %w", err)
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token store dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token store: %w", err)
	}

	// Tokens are credentials, keep the file private.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token store: %w", err)
	}
	return nil
}
