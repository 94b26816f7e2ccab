package logger

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/rebuild/internal/core/ports"
)

const NodeID graft.ID = "adapter.logger"

// LevelEnv names the environment variable selecting the log level.
const LevelEnv = "REBUILD_LOG_LEVEL"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Logger, error) {
			l := New()
			if level, ok := os.LookupEnv(LevelEnv); ok {
				l.SetLevel(ParseLevel(level))
			}
			return l, nil
		},
	})
}
