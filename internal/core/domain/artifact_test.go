package domain_test

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rebuild/internal/core/domain"
)

type payload struct {
	Name  string
	Count int
}

func TestThunk_Cached(t *testing.T) {
	g := newGraph(t)
	calls := 0
	th := domain.NewThunk(g, domain.Definition{Kind: "payload"}, func() (*payload, error) {
		calls++
		return &payload{Name: "x"}, nil
	}, true)

	first, err := th.LoadValue(nil)
	require.NoError(t, err)
	second, err := th.LoadValue(nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	done, err := th.IsDone(nil)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestThunk_ConcurrentLoadsEvaluateOnce(t *testing.T) {
	g := newGraph(t)
	var calls atomic.Int32
	release := make(chan struct{})
	th := domain.NewThunk(g, domain.Definition{Kind: "payload"}, func() (*payload, error) {
		calls.Add(1)
		<-release
		return &payload{Name: "x"}, nil
	}, true)

	var wg sync.WaitGroup
	results := make([]*payload, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := th.LoadValue(nil)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

func TestThunk_Uncached(t *testing.T) {
	g := newGraph(t)
	calls := 0
	th := domain.NewThunk(g, domain.Definition{Kind: "payload"}, func() (*payload, error) {
		calls++
		return &payload{Count: calls}, nil
	}, false)

	first, err := th.LoadValue(nil)
	require.NoError(t, err)
	second, err := th.LoadValue(nil)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, calls)
}

func TestThunk_Identity(t *testing.T) {
	g := newGraph(t)
	fn := func() (int, error) { return 1, nil }

	hashOf := func(th *domain.Thunk[int]) domain.Hash {
		h, err := th.IdentityHash()
		require.NoError(t, err)
		return h
	}

	a := domain.NewThunk(g, domain.Definition{Kind: "one", Version: "1"}, fn, true)
	b := domain.NewThunk(g, domain.Definition{Kind: "one", Version: "1"}, fn, true)
	c := domain.NewThunk(g, domain.Definition{Kind: "one", Version: "2"}, fn, true)
	d := domain.NewThunk(g, domain.Definition{Kind: "one", Version: "1"}, fn, false)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, hashOf(a), hashOf(b))
	assert.NotEqual(t, hashOf(a), hashOf(c))
	assert.NotEqual(t, hashOf(a), hashOf(d))
}

func TestThunk_NoFunction(t *testing.T) {
	g := newGraph(t)
	th := domain.NewThunk[int](g, domain.Definition{Kind: "empty"}, nil, true)

	_, err := th.LoadValue(nil)
	require.ErrorIs(t, err, domain.ErrUnimplementedComputation)
}

func TestSaveValue_Unsupported(t *testing.T) {
	g := newGraph(t)
	repo := newMemRepository()

	th := domain.NewThunk(g, domain.Definition{Kind: "k"}, func() (int, error) { return 1, nil }, true)
	require.ErrorIs(t, th.SaveValue(repo, 2), domain.ErrUnsupportedPersistence)

	dir := domain.NewFixedDir(g, t.TempDir())
	require.ErrorIs(t, dir.SaveValue(repo, "elsewhere"), domain.ErrUnsupportedPersistence)

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	file, err := domain.NewFixedFile[[]byte](g, path, domain.BytesFormat{})
	require.NoError(t, err)
	require.ErrorIs(t, file.SaveValue(repo, []byte("y")), domain.ErrUnsupportedPersistence)
}

func TestFixedDir(t *testing.T) {
	g := newGraph(t)
	repo := newMemRepository()
	location := t.TempDir()

	dir := domain.NewFixedDir(g, location)
	done, err := dir.IsDone(repo)
	require.NoError(t, err)
	assert.True(t, done)

	value, err := dir.LoadValue(repo)
	require.NoError(t, err)
	assert.Equal(t, location, value)

	missing := domain.NewFixedDir(g, filepath.Join(location, "absent"))
	done, err = missing.IsDone(repo)
	require.NoError(t, err)
	assert.False(t, done)

	h1, err := dir.IdentityHash()
	require.NoError(t, err)
	h2, err := domain.NewFixedDir(g, location).IdentityHash()
	require.NoError(t, err)
	h3, err := missing.IdentityHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestFixedFile(t *testing.T) {
	g := newGraph(t)
	repo := newMemRepository()
	dir := t.TempDir()

	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o600))
	require.NoError(t, os.WriteFile(c, []byte("other"), 0o600))

	fa, err := domain.NewFixedFile[[]byte](g, a, domain.BytesFormat{})
	require.NoError(t, err)
	fb, err := domain.NewFixedFile[[]byte](g, b, domain.BytesFormat{})
	require.NoError(t, err)
	fc, err := domain.NewFixedFile[[]byte](g, c, domain.BytesFormat{})
	require.NoError(t, err)

	ha, _ := fa.IdentityHash()
	hb, _ := fb.IdentityHash()
	hc, _ := fc.IdentityHash()
	assert.Equal(t, ha, hb, "identity depends on content, not location")
	assert.NotEqual(t, ha, hc)

	value, err := fa.LoadValue(repo)
	require.NoError(t, err)
	assert.Equal(t, []byte("same"), value)

	done, err := fa.IsDone(repo)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestFixedFile_Missing(t *testing.T) {
	g := newGraph(t)
	_, err := domain.NewFixedFile[[]byte](g, filepath.Join(t.TempDir(), "absent"), domain.BytesFormat{})
	require.Error(t, err)
	assert.Zero(t, g.Len())
}

func TestFixedFile_EditedAfterConstruction(t *testing.T) {
	g := newGraph(t)
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o600))

	f, err := domain.NewFixedFile[[]byte](g, path, domain.BytesFormat{})
	require.NoError(t, err)
	require.NoError(t, domain.CheckIdentityHash(f))

	require.NoError(t, os.WriteFile(path, []byte("after"), 0o600))
	require.ErrorIs(t, domain.CheckIdentityHash(f), domain.ErrHashDrift)
}

func TestFixedFile_Formats(t *testing.T) {
	g := newGraph(t)
	repo := newMemRepository()
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Name":"n","Count":2}`), 0o600))

	decoded, err := domain.NewFixedFile[payload](g, path, domain.DecodedFormat[payload]{})
	require.NoError(t, err)
	value, err := decoded.LoadValue(repo)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "n", Count: 2}, value)

	raw, err := domain.NewFixedFile[[]byte](g, path, domain.BytesFormat{})
	require.NoError(t, err)
	hd, _ := decoded.IdentityHash()
	hr, _ := raw.IdentityHash()
	assert.NotEqual(t, hd, hr, "the format is part of the identity")

	noFormat, err := domain.NewFixedFile[[]byte](g, path, nil)
	require.NoError(t, err)
	_, err = noFormat.LoadValue(repo)
	require.ErrorIs(t, err, domain.ErrUnimplementedComputation)
}

func TestJobOutput_RoundTrip(t *testing.T) {
	g := newGraph(t)
	repo := newMemRepository()

	j, err := domain.NewJob(g, "produce", domain.Definition{Kind: "test"}, nil)
	require.NoError(t, err)
	out, err := domain.NewOutput[payload](j)
	require.NoError(t, err)

	path, err := out.Path(repo)
	require.NoError(t, err)
	h, err := out.IdentityHash()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache", h.String()), path)

	done, err := out.IsDone(repo)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = out.LoadValue(repo)
	require.ErrorIs(t, err, domain.ErrValueNotDone)

	want := payload{Name: "value", Count: 7}
	require.NoError(t, out.SaveValue(repo, want))

	got, err := out.LoadValue(repo)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	done, err = out.IsDone(repo)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestJobOutput_SaveFailure(t *testing.T) {
	g := newGraph(t)
	repo := newMemRepository()
	repo.failWrite = true

	j, err := domain.NewJob(g, "produce", domain.Definition{Kind: "test"}, nil)
	require.NoError(t, err)
	out, err := domain.NewOutput[int](j)
	require.NoError(t, err)

	require.ErrorIs(t, out.SaveValue(repo, 1), errWriteFailed)
	done, err := out.IsDone(repo)
	require.NoError(t, err)
	assert.False(t, done)
}
