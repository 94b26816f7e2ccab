// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/rebuild/internal/core/domain"
)

// Executor defines the interface for executing step commands.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the step's command in dir and returns what it wrote to stdout.
	//
	// The env parameter contains extra environment variables in "KEY=VALUE" format.
	// They take precedence over the process environment, and the step's own
	// environment takes precedence over them.
	Execute(ctx context.Context, step *domain.Step, dir string, env []string) ([]byte, error)
}
