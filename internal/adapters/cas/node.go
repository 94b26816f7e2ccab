package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rebuild/internal/adapters/fs"
	"go.trai.ch/rebuild/internal/core/ports"
)

const NodeID graft.ID = "adapter.repository_opener"

func init() {
	graft.Register(graft.Node[ports.RepositoryOpener]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.VerifierNodeID},
		Run: func(ctx context.Context) (ports.RepositoryOpener, error) {
			verifier, err := graft.Dep[*fs.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			return NewOpener(verifier), nil
		},
	})
}
