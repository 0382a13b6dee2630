// Package serverdb manages per-profile item stores for the reference
// sync server (spec.md §6). Each profile — an arbitrary caller-chosen
// namespace, "default" when unspecified — gets its own durable
// storage.Store, lazily opened the first time it's requested and kept
// open for the process lifetime, mirroring the teacher's
// ProjectDBPool.
package serverdb

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/autonome/peek/internal/storage"
	"github.com/autonome/peek/internal/storage/sqlite"
)

// DefaultProfile is used whenever a request omits ?profile=.
const DefaultProfile = "default"

var profileNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateProfile reports whether name is safe to use as a directory
// component. Empty is allowed (callers should substitute DefaultProfile).
func ValidateProfile(name string) error {
	if name == "" {
		return nil
	}
	if !profileNameRe.MatchString(name) {
		return fmt.Errorf("serverdb: invalid profile name %q", name)
	}
	return nil
}

// Pool is a registry of per-profile stores rooted at a data directory.
type Pool struct {
	mu      sync.RWMutex
	stores  map[string]storage.Store
	dataDir string
}

// NewPool creates a Pool that stores each profile's database under
// dataDir/<profile>/peek.db.
func NewPool(dataDir string) *Pool {
	return &Pool{stores: make(map[string]storage.Store), dataDir: dataDir}
}

// Get returns the store for profile, opening it on first use.
func (p *Pool) Get(profile string) (storage.Store, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}

	p.mu.RLock()
	s, ok := p.stores[profile]
	p.mu.RUnlock()
	if ok {
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stores[profile]; ok {
		return s, nil
	}

	dbPath := filepath.Join(p.dataDir, profile, "peek.db")
	s = sqlite.New(dbPath)
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("serverdb: open profile %q: %w", profile, err)
	}
	p.stores[profile] = s
	return s, nil
}

// CloseAll closes every open profile store.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, s := range p.stores {
		if err := s.Close(); err != nil {
			// best-effort; caller is shutting down
			_ = err
		}
		delete(p.stores, name)
	}
}
