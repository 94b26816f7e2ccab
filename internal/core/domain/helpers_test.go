package domain_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/rebuild/internal/adapters/fs"
	"go.trai.ch/rebuild/internal/core/domain"
)

func newGraph(t *testing.T) *domain.Graph {
	t.Helper()
	d, err := fs.NewHasher(fs.NewWalker()).Digester(domain.HashSHA256)
	require.NoError(t, err)
	return domain.NewGraph(d)
}

var errWriteFailed = errors.New("write failed")

// memRepository keeps cached values in memory. Paths outside the cache are looked
// up on disk.
type memRepository struct {
	mu        sync.Mutex
	values    map[string][]byte
	failWrite bool
}

func newMemRepository() *memRepository {
	return &memRepository{values: make(map[string][]byte)}
}

func (r *memRepository) CacheDir() string {
	return "/cache"
}

func (r *memRepository) Exists(path string) (bool, error) {
	r.mu.Lock()
	_, ok := r.values[path]
	r.mu.Unlock()
	if ok {
		return true, nil
	}
	if filepath.Dir(path) == r.CacheDir() {
		return false, nil
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (r *memRepository) ReadValue(path string, dst any) error {
	r.mu.Lock()
	data, ok := r.values[path]
	r.mu.Unlock()
	if !ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(data, dst)
}

func (r *memRepository) WriteValue(path string, v any) error {
	if r.failWrite {
		return errWriteFailed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[path] = data
	return nil
}
