// Package cas implements the content-addressed build repository and its build
// record store.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BuildInfoStore = (*Store)(nil)

// Store implements ports.BuildInfoStore using a flat JSON file keyed by artifact hash.
type Store struct {
	path  string
	mu    sync.RWMutex
	cache map[domain.Hash]domain.BuildInfo
}

// NewStore creates a new BuildInfoStore backed by the file at the given path.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:  filepath.Clean(path),
		cache: make(map[domain.Hash]domain.BuildInfo),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to read build info store"), "path", s.path)
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.cache); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unmarshal build info store"), "path", s.path)
	}

	return nil
}

// save writes the current records. The caller must hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal build info store")
	}
	return writeFileAtomic(s.path, data, 0o644)
}

// Get retrieves the build record of an artifact.
func (s *Store) Get(artifact domain.Hash) (*domain.BuildInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.cache[artifact]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Put stores the build record and writes the store to disk.
func (s *Store) Put(info domain.BuildInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[info.Artifact] = info
	return s.save()
}

// List returns every record ordered by artifact hash.
func (s *Store) List() []domain.BuildInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.BuildInfo, 0, len(s.cache))
	for _, h := range slices.Sorted(maps.Keys(s.cache)) {
		infos = append(infos, s.cache[h])
	}
	return infos
}

// Reset drops every record and removes the backing file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.cache)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "failed to remove build info store"), "path", s.path)
	}
	return nil
}
