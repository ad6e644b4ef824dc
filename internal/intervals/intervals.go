// Package intervals persists per-asset cycle-interval overrides so a
// set-interval control command survives restart.
package intervals

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"ai-trading-agent/internal/symbols"
)

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (map[string]int, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, err
	}
	m := map[string]int{}
	if err := json.Unmarshal(b, &m); err != nil {
		// A corrupt settings file falls back to defaults rather than
		// blocking the scheduler.
		return map[string]int{}, nil
	}
	return m, nil
}

func (s *Store) save(m map[string]int) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

// Get returns the stored interval for the asset, or def when none is set.
func (s *Store) Get(asset string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return def
	}
	if v, ok := m[symbols.Canonical(asset)]; ok && v > 0 {
		return v
	}
	return def
}

// Set persists the interval for the asset.
func (s *Store) Set(asset string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[symbols.Canonical(asset)] = seconds
	return s.save(m)
}
