package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"clipstudio/config"
)

// FileStore writes credentials to a JSON file on disk. Writers also take an
// advisory lock on "<path>.lock" so a TUI and `key set` running side by side
// do not drop each other's entries.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore builds a FileStore rooted at the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads the stored key. A missing file resolves to an empty key.
func (s *FileStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	return values[config.CredentialKey], nil
}

// Set stores key, keeping any other entries in the file.
func (s *FileStore) Set(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	return s.update(func(values map[string]string) bool {
		values[config.CredentialKey] = key
		return true
	})
}

// Clear removes the stored key.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.update(func(values map[string]string) bool {
		if _, ok := values[config.CredentialKey]; !ok {
			return false
		}
		delete(values, config.CredentialKey)
		return true
	})
}

// update runs a read-modify-write cycle under the process and file locks.
// fn reports whether values changed and need saving.
func (s *FileStore) update(fn func(values map[string]string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure credentials directory: %w", err)
	}
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock credentials: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	values, err := s.load()
	if err != nil {
		return err
	}
	if !fn(values) {
		return nil
	}
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	values := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return values, nil
}

// save persists values to disk with restricted permissions.
func (s *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
