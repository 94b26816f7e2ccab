// Package scheduler implements the job execution scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options control a run.
type Options struct {
	// Force runs every job reachable from the targets, even when its outputs are cached.
	Force bool
	// Parallelism bounds concurrently running jobs. Zero means one per CPU.
	Parallelism int
}

// Report describes a finished run.
type Report struct {
	RunID string
	// Ran lists the jobs that ran successfully.
	Ran []*domain.Job
	// Cached lists the jobs whose outputs were already in the cache.
	Cached []*domain.Job
}

// Scheduler manages the execution of jobs in a domain graph.
type Scheduler struct {
	logger    ports.Logger
	telemetry ports.Telemetry

	mu        sync.RWMutex
	jobStatus map[domain.NodeID]domain.VertexStatus
}

// NewScheduler creates a new Scheduler.
func NewScheduler(logger ports.Logger, telemetry ports.Telemetry) *Scheduler {
	return &Scheduler{
		logger:    logger,
		telemetry: telemetry,
		jobStatus: make(map[domain.NodeID]domain.VertexStatus),
	}
}

// updateStatus updates the status of a job.
func (s *Scheduler) updateStatus(id domain.NodeID, status domain.VertexStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus[id] = status
}

// getStatus retrieves the status of a job.
func (s *Scheduler) getStatus(id domain.NodeID) domain.VertexStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobStatus[id]
}

func (s *Scheduler) resetStatus(plan *Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus = make(map[domain.NodeID]domain.VertexStatus, len(plan.Jobs)+len(plan.Cached))
	for _, j := range plan.Jobs {
		s.jobStatus[j.ID()] = domain.VertexStatusPending
	}
	for _, j := range plan.Cached {
		s.jobStatus[j.ID()] = domain.VertexStatusCached
	}
}

// Run brings targets up to date and returns once every planned job has finished or
// can no longer start.
//
// Identity hashes of everything reachable from targets are checked first; drift
// fails the run before any job starts. A failed job blocks the jobs reading its
// outputs, and the errors of all failed jobs are joined.
func (s *Scheduler) Run(
	ctx context.Context,
	repo ports.Repository,
	targets []domain.Artifact,
	opts Options,
) (*Report, error) {
	nodes := make([]domain.Node, len(targets))
	for i, t := range targets {
		nodes[i] = t
	}
	if err := domain.CheckAllIdentityHashes(nodes...); err != nil {
		return nil, err
	}

	plan, err := NewPlan(repo, targets, opts.Force)
	if err != nil {
		return nil, err
	}
	s.resetStatus(plan)

	report := &Report{RunID: uuid.NewString(), Cached: plan.Cached}
	for _, j := range plan.Cached {
		_, v := s.telemetry.Record(ctx, j.Name())
		v.Cached()
	}
	if len(plan.Jobs) > 0 {
		s.logger.Info(fmt.Sprintf("run %s: %d jobs to run, %d cached", report.RunID, len(plan.Jobs), len(plan.Cached)))
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	state := s.newRunState(ctx, repo, plan, parallelism, report)

	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			if state.active > 0 {
				state.handleResult(<-state.resultsCh)
			}
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}
	state.skipBlocked()

	return report, state.errs
}

type result struct {
	job *domain.Job
	err error
}

type schedulerRunState struct {
	inDegree    map[domain.NodeID]int
	dependents  map[domain.NodeID][]*domain.Job
	jobs        []*domain.Job
	ready       []*domain.Job
	active      int
	resultsCh   chan result
	errs        error
	ctx         context.Context
	parallelism int
	repo        ports.Repository
	report      *Report
	s           *Scheduler
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	repo ports.Repository,
	plan *Plan,
	parallelism int,
	report *Report,
) *schedulerRunState {
	planned := make(map[domain.NodeID]struct{}, len(plan.Jobs))
	for _, j := range plan.Jobs {
		planned[j.ID()] = struct{}{}
	}

	inDegree := make(map[domain.NodeID]int, len(plan.Jobs))
	dependents := make(map[domain.NodeID][]*domain.Job, len(plan.Jobs))
	var ready []*domain.Job
	for _, j := range plan.Jobs {
		seen := make(map[domain.NodeID]struct{})
		for _, producer := range j.ProducingJobsOfInputs() {
			if _, ok := planned[producer.ID()]; !ok {
				continue
			}
			if _, ok := seen[producer.ID()]; ok {
				continue
			}
			seen[producer.ID()] = struct{}{}
			inDegree[j.ID()]++
			dependents[producer.ID()] = append(dependents[producer.ID()], j)
		}
		if inDegree[j.ID()] == 0 {
			ready = append(ready, j)
		}
	}

	return &schedulerRunState{
		inDegree:    inDegree,
		dependents:  dependents,
		jobs:        plan.Jobs,
		ready:       ready,
		resultsCh:   make(chan result, parallelism),
		ctx:         ctx,
		parallelism: parallelism,
		repo:        repo,
		report:      report,
		s:           s,
	}
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		job := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		state.s.updateStatus(job.ID(), domain.VertexStatusRunning)

		go func(j *domain.Job) {
			state.resultsCh <- result{job: j, err: state.execute(state.ctx, j)}
		}(job)
	}
}

func (state *schedulerRunState) execute(ctx context.Context, job *domain.Job) (err error) {
	ctx, vertex := state.s.telemetry.Record(ctx, job.Name())
	defer func() { vertex.Complete(err) }()

	if err := job.Run(ctx, state.repo); err != nil {
		return err
	}
	return state.record(job)
}

// record checks that the job produced every output asked of it and stores a build
// record for each.
func (state *schedulerRunState) record(job *domain.Job) error {
	jobHash, err := job.IdentityHash()
	if err != nil {
		return err
	}

	for _, out := range job.Outputs() {
		done, err := out.IsDone(state.repo)
		if err != nil {
			return err
		}
		if !done {
			return zerr.With(zerr.Wrap(domain.ErrOutputNotProduced, ""), "output", out.String())
		}

		hash, err := out.IdentityHash()
		if err != nil {
			return err
		}
		info := domain.BuildInfo{
			Artifact:  hash,
			Step:      job.Name(),
			Job:       jobHash,
			RunID:     state.report.RunID,
			Timestamp: time.Now(),
		}
		if named, ok := out.(interface{ Name() string }); ok {
			info.Output = named.Name()
		}
		if err := state.repo.BuildInfo().Put(info); err != nil {
			return zerr.Wrap(err, "failed to store build info")
		}
	}
	return nil
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	if res.err != nil {
		wrappedErr := zerr.With(zerr.Wrap(res.err, "job execution failed"), "job", res.job.Name())
		state.errs = errors.Join(state.errs, wrappedErr)
		state.s.updateStatus(res.job.ID(), domain.VertexStatusFailed)
		return
	}

	state.s.updateStatus(res.job.ID(), domain.VertexStatusCompleted)
	state.report.Ran = append(state.report.Ran, res.job)
	for _, dep := range state.dependents[res.job.ID()] {
		state.inDegree[dep.ID()]--
		if state.inDegree[dep.ID()] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

// skipBlocked marks the jobs that never started.
func (state *schedulerRunState) skipBlocked() {
	for _, j := range state.jobs {
		if state.s.getStatus(j.ID()) == domain.VertexStatusPending {
			state.s.updateStatus(j.ID(), domain.VertexStatusSkipped)
		}
	}
}
