package domain

import (
	"iter"
	"sync"

	"go.trai.ch/zerr"
)

// Graph owns the nodes of one computation graph. It assigns node identities and
// holds the digester every identity hash in the graph is computed with.
type Graph struct {
	digester Digester

	mu    sync.RWMutex
	nodes []Node
}

// NewGraph creates an empty Graph hashing with d.
func NewGraph(d Digester) *Graph {
	return &Graph{digester: d}
}

// Digester returns the digester identities are computed with.
func (g *Graph) Digester() Digester {
	return g.digester
}

// add registers n and assigns its identity.
func (g *Graph) add(n Node, label string, compute func() (Hash, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := n.base()
	b.id = NodeID(len(g.nodes) + 1)
	b.graph = g
	b.label = label
	b.compute = compute
	g.nodes = append(g.nodes, n)
}

// owns reports whether every node was created by this graph.
func (g *Graph) owns(nodes ...Node) error {
	for _, n := range nodes {
		if n == nil || n.base().graph != g {
			label := "<nil>"
			if n != nil {
				label = n.String()
			}
			return zerr.With(zerr.Wrap(ErrForeignNode, ""), "node", label)
		}
	}
	return nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes yields the nodes in construction order, which is always a valid build order.
func (g *Graph) Nodes() iter.Seq[Node] {
	g.mu.RLock()
	snapshot := make([]Node, len(g.nodes))
	copy(snapshot, g.nodes)
	g.mu.RUnlock()

	return func(yield func(Node) bool) {
		for _, n := range snapshot {
			if !yield(n) {
				return
			}
		}
	}
}

// Jobs yields the jobs of the graph in construction order.
func (g *Graph) Jobs() iter.Seq[*Job] {
	return func(yield func(*Job) bool) {
		for n := range g.Nodes() {
			if j, ok := n.(*Job); ok {
				if !yield(j) {
					return
				}
			}
		}
	}
}

// CheckAll checks the identity hash of every node in the graph.
func (g *Graph) CheckAll() error {
	for n := range g.Nodes() {
		if err := CheckIdentityHash(n); err != nil {
			return err
		}
	}
	return nil
}
