// Package project tracks open project roots and keeps their lint
// configuration in sync with the filesystem.
package project

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/oraclelint/internal/config"
)

// Store maps project roots to their parsed configuration.
// It performs no I/O; Registry is the only writer in a running session.
type Store struct {
	mu      sync.RWMutex
	seq     uint64
	roots   map[string]uint64 // tracked root -> insertion sequence
	configs map[string]*config.ProjectConfig
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		roots:   make(map[string]uint64),
		configs: make(map[string]*config.ProjectConfig),
	}
}

// Get returns the config stored for root.
func (s *Store) Get(root string) (*config.ProjectConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[cleanRoot(root)]
	return cfg, ok
}

// Set stores cfg for root, replacing any previous value.
// The root becomes tracked if it was not already.
func (s *Store) Set(root string, cfg *config.ProjectConfig) {
	root = cleanRoot(root)
	if cfg == nil {
		cfg = &config.ProjectConfig{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackLocked(root)
	s.configs[root] = cfg
}

// Remove drops the config for root. The root stays tracked.
func (s *Store) Remove(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.configs, cleanRoot(root))
}

// Track marks root as an open project root, so files under it resolve to
// it even while it has no config.
func (s *Store) Track(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackLocked(cleanRoot(root))
}

func (s *Store) trackLocked(root string) {
	if _, ok := s.roots[root]; ok {
		return
	}
	s.seq++
	s.roots[root] = s.seq
}

// Untrack forgets root and its config.
func (s *Store) Untrack(root string) {
	root = cleanRoot(root)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.roots, root)
	delete(s.configs, root)
}

// Clear removes every root and config.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roots = make(map[string]uint64)
	s.configs = make(map[string]*config.ProjectConfig)
}

// Roots returns the tracked roots in sorted order.
func (s *Store) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roots := make([]string, 0, len(s.roots))
	for r := range s.roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

// Len returns the number of stored configs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.configs)
}

// RootFor returns the tracked root owning path: the longest root that is
// path or one of its ancestors. The most recently tracked root wins a tie.
// Relative paths are resolved against the working directory.
func (s *Store) RootFor(path string) (string, bool) {
	path = cleanRoot(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best    string
		bestSeq uint64
		found   bool
	)
	for root, seq := range s.roots {
		if !within(root, path) {
			continue
		}
		if !found || len(root) > len(best) || (len(root) == len(best) && seq > bestSeq) {
			best, bestSeq, found = root, seq, true
		}
	}
	return best, found
}

// FiltersFor returns the filters of the project owning path.
// The result is never nil: no owning root, or a root without filters,
// yields an empty slice.
func (s *Store) FiltersFor(path string) []json.RawMessage {
	root, ok := s.RootFor(path)
	if !ok {
		return []json.RawMessage{}
	}

	cfg, ok := s.Get(root)
	if !ok || !cfg.HasFilters() {
		return []json.RawMessage{}
	}
	return cfg.Filters
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// cleanRoot returns root as an absolute, cleaned path. Relative paths
// are resolved against the working directory.
func cleanRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}
