package domain

import (
	"sync"

	"go.trai.ch/zerr"
)

var _ Value[int] = (*Thunk[int])(nil)

// Thunk is an artifact computed on demand by a function. It is always done and is
// never persisted; its identity is that of its definition.
type Thunk[T any] struct {
	nodeBase

	def         Definition
	fn          func() (T, error)
	shouldCache bool

	valueMu sync.Mutex
	value   T
	loaded  bool
}

// NewThunk creates a thunk artifact. def must describe fn: two thunks with equal
// definitions are treated as the same value. When shouldCache is true fn runs at
// most once per Thunk and the result is kept for the life of the process.
//
// Concurrent loads of a cached thunk wait for the first evaluation. fn must not load
// the thunk's own value, directly or through another thunk: that load waits on itself
// and never returns.
func NewThunk[T any](g *Graph, def Definition, fn func() (T, error), shouldCache bool) *Thunk[T] {
	t := &Thunk[T]{def: def, fn: fn, shouldCache: shouldCache}
	g.add(t, "thunk "+def.String(), t.ComputeIdentityHash)
	return t
}

// Definition returns the thunk's definition.
func (t *Thunk[T]) Definition() Definition {
	return t.def
}

// Parents returns nothing: a thunk has no dependencies in the graph.
func (t *Thunk[T]) Parents() []Node {
	return nil
}

// ParentArtifacts returns nothing.
func (t *Thunk[T]) ParentArtifacts() []Artifact {
	return nil
}

// ComputeIdentityHash hashes the variant, the thunk's definition and the cache flag.
func (t *Thunk[T]) ComputeIdentityHash() (Hash, error) {
	d := t.graph.digester
	return d.Sum(
		[]byte(HashDefinition(d, thunkDefinition)),
		[]byte(HashDefinition(d, t.def)),
		boolPart(t.shouldCache),
	), nil
}

// IsDone is always true.
func (t *Thunk[T]) IsDone(Repository) (bool, error) {
	return true, nil
}

// LoadValue evaluates the thunk, or returns the cached result.
func (t *Thunk[T]) LoadValue(Repository) (T, error) {
	if t.fn == nil {
		var zero T
		return zero, zerr.With(zerr.Wrap(ErrUnimplementedComputation, ""), "node", t.String())
	}
	if !t.shouldCache {
		return t.fn()
	}

	t.valueMu.Lock()
	defer t.valueMu.Unlock()
	if !t.loaded {
		v, err := t.fn()
		if err != nil {
			return v, err
		}
		t.value = v
		t.loaded = true
	}
	return t.value, nil
}

// SaveValue always fails: a thunk's value is a function of code, not stored data.
func (t *Thunk[T]) SaveValue(Repository, T) error {
	return zerr.With(zerr.Wrap(ErrUnsupportedPersistence, ""), "node", t.String())
}
