// Package faststore implements the fast durable key-value tier: a small JSON
// file mapping namespaced keys to values. Reads are served from memory;
// writes go through to disk immediately.
package faststore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Versioned key namespace. All records live under one version so legacy keys
// never have to be guessed at during reconciliation.
const (
	KeyCachedModels = "modelhost.v1.cached_models"
	KeyActiveModel  = "modelhost.v1.active_model"
)

// Store is a file-backed KV store. The zero value is not usable; use Open.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// Open loads the store file if it exists, otherwise starts empty. A corrupt
// file is treated as empty rather than fatal; the next write replaces it.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty store path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store dir: %w", err)
	}
	s := &Store{path: path, data: make(map[string]json.RawMessage)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(b, &data); err == nil && data != nil {
		s.data = data
	}
	return s, nil
}

// Get unmarshals the value at key into v. Returns false when absent.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Put stores v at key and persists the whole store.
func (s *Store) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.saveLocked()
}

// Delete removes key and persists. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.saveLocked()
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
