// Package app implements the application layer for rebuild.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/rebuild/internal/engine/pipeline"
	"go.trai.ch/rebuild/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	builder      *pipeline.Builder
	scheduler    *scheduler.Scheduler
	opener       ports.RepositoryOpener
	logger       ports.Logger
	stdout       io.Writer
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	builder *pipeline.Builder,
	sched *scheduler.Scheduler,
	opener ports.RepositoryOpener,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		builder:      builder,
		scheduler:    sched,
		opener:       opener,
		logger:       log,
		stdout:       os.Stdout,
	}
}

// WithStdout sets where step outputs are printed.
func (a *App) WithStdout(w io.Writer) *App {
	a.stdout = w
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	Force bool
	// Parallelism overrides the configured parallelism when positive.
	Parallelism int
	// Quiet suppresses printing the outputs of the targets.
	Quiet bool
}

// TargetHash is the identity of a target's output.
type TargetHash struct {
	Step string
	Hash domain.Hash
	Done bool
}

type session struct {
	pipeline *domain.Pipeline
	repo     ports.Repository
	build    *pipeline.Build
}

func (a *App) open() (*domain.Pipeline, ports.Repository, error) {
	p, err := a.configLoader.Load(".")
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load configuration")
	}
	repo, err := a.opener.Open(p.Settings)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to open repository")
	}
	return p, repo, nil
}

func (a *App) load() (*session, error) {
	p, repo, err := a.open()
	if err != nil {
		return nil, err
	}
	b, err := a.builder.Build(p)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build graph")
	}
	return &session{pipeline: p, repo: repo, build: b}, nil
}

func (s *session) targets(names []string) ([]string, []*domain.JobOutput[[]byte], error) {
	selected, err := s.pipeline.Select(names)
	if err != nil {
		return nil, nil, err
	}
	outs, err := s.build.Outputs(selected)
	if err != nil {
		return nil, nil, err
	}
	return selected, outs, nil
}

// Run brings the specified targets up to date and prints their outputs.
func (a *App) Run(ctx context.Context, targetNames []string, opts RunOptions) error {
	// 1. Load the pipeline and build the graph
	s, err := a.load()
	if err != nil {
		return err
	}

	// 2. Validate targets
	names, outs, err := s.targets(targetNames)
	if err != nil {
		return err
	}
	artifacts := make([]domain.Artifact, len(outs))
	for i, out := range outs {
		artifacts[i] = out
	}

	// 3. Run the scheduler
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = s.pipeline.Settings.Parallelism
	}
	report, err := a.scheduler.Run(ctx, s.repo, artifacts, scheduler.Options{
		Force:       opts.Force,
		Parallelism: parallelism,
	})
	if err != nil {
		return errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	a.logger.Info(fmt.Sprintf("%d ran, %d cached", len(report.Ran), len(report.Cached)))

	// 4. Print outputs
	if opts.Quiet {
		return nil
	}
	for i, out := range outs {
		value, err := out.LoadValue(s.repo)
		if err != nil {
			return zerr.With(err, "step", names[i])
		}
		if _, err := a.stdout.Write(value); err != nil {
			return zerr.Wrap(err, "failed to write output")
		}
	}
	return nil
}

// Hashes returns the identity of each target's output and whether it is cached.
func (a *App) Hashes(_ context.Context, targetNames []string) ([]TargetHash, error) {
	s, err := a.load()
	if err != nil {
		return nil, err
	}
	names, outs, err := s.targets(targetNames)
	if err != nil {
		return nil, err
	}

	hashes := make([]TargetHash, len(outs))
	for i, out := range outs {
		h, err := out.IdentityHash()
		if err != nil {
			return nil, zerr.With(err, "step", names[i])
		}
		done, err := out.IsDone(s.repo)
		if err != nil {
			return nil, zerr.With(err, "step", names[i])
		}
		hashes[i] = TargetHash{Step: names[i], Hash: h, Done: done}
	}
	return hashes, nil
}

// Verify recomputes the identity of everything the targets depend on and fails on
// the first hash that disagrees with its memoized value. The graph is freshly built,
// so this only catches inputs that change while they are being hashed; cached values
// are not read.
func (a *App) Verify(ctx context.Context, targetNames []string) error {
	s, err := a.load()
	if err != nil {
		return err
	}
	_, outs, err := s.targets(targetNames)
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	if s.pipeline.Settings.Parallelism > 0 {
		g.SetLimit(s.pipeline.Settings.Parallelism)
	}
	for _, out := range outs {
		g.Go(func() error {
			return domain.CheckAllIdentityHashes(out)
		})
	}
	return g.Wait()
}

// Entries lists the values in the cache.
func (a *App) Entries(_ context.Context) ([]domain.CacheEntry, error) {
	_, repo, err := a.open()
	if err != nil {
		return nil, err
	}
	return repo.Entries()
}

// Clean removes every cached value and build record.
func (a *App) Clean(_ context.Context) error {
	_, repo, err := a.open()
	if err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("removing %s...", repo.CacheDir()))
	if err := repo.Clean(); err != nil {
		return zerr.Wrap(err, "failed to clean repository")
	}
	a.logger.Info("removed cache and build records")
	return nil
}
