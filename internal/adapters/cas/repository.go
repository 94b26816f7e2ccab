package cas

import (
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/rebuild/internal/adapters/fs"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

var (
	_ ports.Repository       = (*Repository)(nil)
	_ ports.RepositoryOpener = (*Opener)(nil)
)

// Repository stores job outputs as one file per identity hash directly under its
// cache directory. Writes are atomic, and concurrent writes of the same path within
// the process collapse into one.
type Repository struct {
	cacheDir string
	codec    Codec
	verifier *fs.Verifier
	store    *Store

	writes singleflight.Group
	// reads holds raw bytes of cached values. Entries are immutable once written
	// because their names are identity hashes.
	reads *lru.Cache[string, []byte]
}

// NewRepository creates a repository rooted at settings.Root. The cache directory is
// created if needed.
func NewRepository(settings domain.Settings, verifier *fs.Verifier) (*Repository, error) {
	codec, err := NewCodec(settings.Codec)
	if err != nil {
		return nil, err
	}

	cacheDir := filepath.Clean(settings.CacheDir())
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", cacheDir)
	}

	store, err := NewStore(settings.StatePath())
	if err != nil {
		return nil, err
	}

	r := &Repository{
		cacheDir: cacheDir,
		codec:    codec,
		verifier: verifier,
		store:    store,
	}
	if settings.ReadCache > 0 {
		r.reads, err = lru.New[string, []byte](settings.ReadCache)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to create read cache")
		}
	}
	return r, nil
}

// CacheDir returns the directory job outputs live in.
func (r *Repository) CacheDir() string {
	return r.cacheDir
}

// BuildInfo returns the build record store.
func (r *Repository) BuildInfo() ports.BuildInfoStore {
	return r.store
}

// Exists reports whether path exists.
func (r *Repository) Exists(path string) (bool, error) {
	return r.verifier.Exists(path)
}

// ReadValue decodes the value stored at path into dst.
func (r *Repository) ReadValue(path string, dst any) error {
	data, err := r.readBytes(path)
	if err != nil {
		return err
	}
	if err := r.codec.Unmarshal(data, dst); err != nil {
		return zerr.With(err, "path", path)
	}
	return nil
}

func (r *Repository) readBytes(path string) ([]byte, error) {
	cacheable := r.reads != nil && r.inCache(path)
	if cacheable {
		if data, ok := r.reads.Get(path); ok {
			return data, nil
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from an identity hash or a declared input
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read value"), "path", path)
	}
	if cacheable {
		r.reads.Add(path, data)
	}
	return data, nil
}

// WriteValue encodes v and stores it at path.
func (r *Repository) WriteValue(path string, v any) error {
	data, err := r.codec.Marshal(v)
	if err != nil {
		return zerr.With(err, "path", path)
	}

	_, err, _ = r.writes.Do(path, func() (any, error) {
		return nil, writeFileAtomic(path, data, 0o644)
	})
	if err != nil {
		return err
	}
	if r.reads != nil && r.inCache(path) {
		r.reads.Add(path, data)
	}
	return nil
}

// Entries lists the values stored in the cache, ordered by hash.
func (r *Repository) Entries() ([]domain.CacheEntry, error) {
	dirEntries, err := os.ReadDir(r.cacheDir)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to list cache"), "path", r.cacheDir)
	}

	entries := make([]domain.CacheEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		// Temporary files carry a suffix; hashes never contain a dot.
		if de.IsDir() || strings.Contains(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to stat cache entry"), "name", de.Name())
		}
		h := domain.Hash(de.Name())
		record, err := r.store.Get(h)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.CacheEntry{
			Hash:    h,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Info:    record,
		})
	}
	return entries, nil
}

// Clean removes every cached value and build record.
func (r *Repository) Clean() error {
	if err := os.RemoveAll(r.cacheDir); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove cache"), "path", r.cacheDir)
	}
	if err := os.MkdirAll(r.cacheDir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", r.cacheDir)
	}
	if r.reads != nil {
		r.reads.Purge()
	}
	return r.store.Reset()
}

func (r *Repository) inCache(path string) bool {
	return filepath.Dir(filepath.Clean(path)) == r.cacheDir
}

// Opener opens repositories on the local filesystem.
type Opener struct {
	verifier *fs.Verifier
}

// NewOpener creates a new Opener.
func NewOpener(verifier *fs.Verifier) *Opener {
	return &Opener{verifier: verifier}
}

// Open implements ports.RepositoryOpener.
func (o *Opener) Open(settings domain.Settings) (ports.Repository, error) {
	return NewRepository(settings, o.verifier)
}
