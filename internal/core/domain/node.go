package domain

import (
	"slices"
	"sync"

	"go.trai.ch/zerr"
)

// NodeID is the stable identity a Graph assigns to each node at construction.
// Traversals deduplicate on NodeID rather than on identity hash, since two distinct
// nodes may legitimately share a hash.
type NodeID uint64

// Node is any element of the dependency graph that takes part in hash checking.
// The set of node kinds is closed: construct nodes through a Graph.
type Node interface {
	// ID returns the node's stable identity.
	ID() NodeID
	// String returns a human readable label.
	String() string
	// Parents returns the direct structural dependencies of the node.
	Parents() []Node
	// IdentityHash returns the memoized identity hash, computing it on first use.
	IdentityHash() (Hash, error)
	// ComputeIdentityHash computes the identity hash afresh, bypassing the memo.
	ComputeIdentityHash() (Hash, error)

	base() *nodeBase
}

// Identifiable is satisfied by anything traversable by Ancestors.
type Identifiable interface {
	ID() NodeID
}

// nodeBase carries the fields every node shares.
type nodeBase struct {
	id      NodeID
	graph   *Graph
	label   string
	compute func() (Hash, error)

	mu       sync.Mutex
	hash     Hash
	computed bool
}

func (b *nodeBase) ID() NodeID {
	return b.id
}

func (b *nodeBase) String() string {
	return b.label
}

func (b *nodeBase) base() *nodeBase {
	return b
}

// IdentityHash computes the hash once and caches it. Failures are not cached.
func (b *nodeBase) IdentityHash() (Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computed {
		return b.hash, nil
	}
	h, err := b.compute()
	if err != nil {
		return "", err
	}
	b.hash = h
	b.computed = true
	return h, nil
}

func (b *nodeBase) storeHash(h Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hash = h
	b.computed = true
}

// CheckIdentityHash recomputes the identity hash of n and compares it with the
// memoized one. A mismatch means the node or one of its inputs changed after its
// hash was taken.
func CheckIdentityHash(n Node) error {
	stored, err := n.IdentityHash()
	if err != nil {
		return err
	}
	fresh, err := n.ComputeIdentityHash()
	if err != nil {
		return err
	}
	if stored != fresh {
		err := zerr.With(zerr.Wrap(ErrHashDrift, ""), "node", n.String())
		err = zerr.With(err, "stored", stored.String())
		return zerr.With(err, "computed", fresh.String())
	}
	return nil
}

// CheckAllIdentityHashes checks every node reachable from nodes, stopping at the
// first drift.
func CheckAllIdentityHashes(nodes ...Node) error {
	for _, n := range AncestorNodes(nodes...) {
		if err := CheckIdentityHash(n); err != nil {
			return err
		}
	}
	return nil
}

// Ancestors returns every node reachable from initial through parents, each exactly
// once, starting nodes included. The walk uses an explicit stack and pushes parents
// in reverse so that declared order is visited first. The result is NOT a
// topological order: a node may be listed before or after its parents.
func Ancestors[N Identifiable](initial []N, parents func(N) []N) []N {
	var ret []N
	agenda := slices.Clone(initial)
	seen := make(map[NodeID]struct{})

	for len(agenda) > 0 {
		n := agenda[len(agenda)-1]
		agenda = agenda[:len(agenda)-1]

		if _, ok := seen[n.ID()]; ok {
			continue
		}
		seen[n.ID()] = struct{}{}
		ret = append(ret, n)

		ps := parents(n)
		for i := len(ps) - 1; i >= 0; i-- {
			agenda = append(agenda, ps[i])
		}
	}
	return ret
}

// AncestorNodes walks the node graph (jobs and artifacts).
func AncestorNodes(initial ...Node) []Node {
	return Ancestors(initial, Node.Parents)
}

// AncestorArtifacts walks the artifact graph: from a job output straight to the
// inputs of the job that produces it.
func AncestorArtifacts(initial ...Artifact) []Artifact {
	return Ancestors(initial, Artifact.ParentArtifacts)
}
