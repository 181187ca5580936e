package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/v2"
)

// Store is the runtime settings collaborator. Reads hit the in-memory tree;
// every Set writes the whole tree back to the config file immediately, so an
// external settings action survives a restart.
type Store struct {
	mu   sync.RWMutex
	k    *koanf.Koanf
	path string
}

// NewStore wraps a loaded koanf tree. An empty path keeps settings in memory
// only (tests, ephemeral runs).
func NewStore(k *koanf.Koanf, path string) *Store {
	return &Store{k: k, path: path}
}

// Get returns the raw value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.k.Exists(key) {
		return nil, false
	}
	return s.k.Get(key), true
}

// GetString returns the value for key, or def when the key is unset or empty.
func (s *Store) GetString(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := s.k.String(key); v != "" {
		return v
	}
	return def
}

// Set stores the value and persists immediately.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.k.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return s.save()
}

// All returns the full settings tree, flattened to dotted keys.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.All()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	data, err := s.k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
