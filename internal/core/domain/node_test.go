package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// diamond builds top <- left, right <- bottom, where left and right both read bottom.
func diamond(t *testing.T, g *domain.Graph) (bottom, left, right, top *domain.JobOutput[string]) {
	t.Helper()
	job := func(name string, inputs ...domain.Artifact) *domain.JobOutput[string] {
		j, err := domain.NewJob(g, name, domain.Definition{Kind: "test", Version: "1", Params: []string{name}}, nil, inputs...)
		require.NoError(t, err)
		out, err := domain.NewOutput[string](j)
		require.NoError(t, err)
		return out
	}
	bottom = job("bottom")
	left = job("left", bottom)
	right = job("right", bottom)
	top = job("top", left, right)
	return bottom, left, right, top
}

func TestAncestorNodes_Diamond(t *testing.T) {
	g := newGraph(t)
	bottom, left, right, top := diamond(t, g)

	nodes := domain.AncestorNodes(top)
	// Four outputs and four jobs, each listed once.
	assert.Len(t, nodes, 8)

	seen := make(map[domain.NodeID]int)
	for _, n := range nodes {
		seen[n.ID()]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "node %d listed more than once", id)
	}
	for _, out := range []domain.Node{bottom, left, right, top} {
		assert.Contains(t, seen, out.ID())
	}
	assert.Equal(t, top.ID(), nodes[0].ID())
}

func TestAncestorArtifacts_Diamond(t *testing.T) {
	g := newGraph(t)
	bottom, left, right, top := diamond(t, g)

	artifacts := domain.AncestorArtifacts(top, left)
	ids := make([]domain.NodeID, len(artifacts))
	for i, a := range artifacts {
		ids[i] = a.ID()
	}
	assert.ElementsMatch(t, []domain.NodeID{top.ID(), left.ID(), right.ID(), bottom.ID()}, ids)
}

func TestAncestors_DeclaredOrderFirst(t *testing.T) {
	g := newGraph(t)
	_, left, right, top := diamond(t, g)

	artifacts := domain.AncestorArtifacts(top)
	require.Len(t, artifacts, 4)
	assert.Equal(t, left.ID(), artifacts[1].ID())
	assert.NotEqual(t, right.ID(), artifacts[1].ID())
}

func TestCheckAllIdentityHashes_Fresh(t *testing.T) {
	g := newGraph(t)
	_, _, _, top := diamond(t, g)

	require.NoError(t, domain.CheckAllIdentityHashes(top))
	require.NoError(t, g.CheckAll())
}

func TestCheckAllIdentityHashes_Drift(t *testing.T) {
	g := newGraph(t)
	bottom, _, _, top := diamond(t, g)

	domain.OverrideIdentityHash(bottom, "not-the-real-hash")

	err := domain.CheckAllIdentityHashes(top)
	require.ErrorIs(t, err, domain.ErrHashDrift)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	meta := zErr.Metadata()
	assert.Equal(t, bottom.String(), meta["node"])
	assert.Equal(t, "not-the-real-hash", meta["stored"])

	require.ErrorIs(t, g.CheckAll(), domain.ErrHashDrift)
}

func TestJob_CheckOwnIdentityHash(t *testing.T) {
	g := newGraph(t)
	j, err := domain.NewJob(g, "j", domain.Definition{Kind: "test"}, nil)
	require.NoError(t, err)

	require.NoError(t, j.CheckOwnIdentityHash())
	domain.OverrideIdentityHash(j, "bogus")
	require.ErrorIs(t, j.CheckOwnIdentityHash(), domain.ErrHashDrift)
}

func TestIdentityHash_Memoized(t *testing.T) {
	g := newGraph(t)
	_, _, _, top := diamond(t, g)

	first, err := top.IdentityHash()
	require.NoError(t, err)
	domain.OverrideIdentityHash(top, "pinned")
	second, err := top.IdentityHash()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, domain.Hash("pinned"), second)

	fresh, err := top.ComputeIdentityHash()
	require.NoError(t, err)
	assert.Equal(t, first, fresh)
}

func TestGraph_NodesInConstructionOrder(t *testing.T) {
	g := newGraph(t)
	_, _, _, top := diamond(t, g)

	assert.Equal(t, 8, g.Len())

	var last domain.NodeID
	for n := range g.Nodes() {
		assert.Greater(t, n.ID(), last)
		last = n.ID()
	}
	assert.Equal(t, top.ID(), last)

	var jobs []string
	for j := range g.Jobs() {
		jobs = append(jobs, j.Name())
	}
	assert.Equal(t, []string{"bottom", "left", "right", "top"}, jobs)
}
