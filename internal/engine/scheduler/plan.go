package scheduler

import (
	"cmp"
	"slices"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// Plan is the work needed to bring a set of targets up to date.
type Plan struct {
	// Jobs must run. Producers come before the jobs that read their outputs.
	Jobs []*domain.Job
	// Cached jobs were reached but every output asked of them is already done.
	Cached []*domain.Job
}

// NewPlan walks back from targets and collects the jobs whose outputs are missing.
//
// A done artifact ends the walk along its path, so nothing upstream of a cached
// value is considered. With force every job reachable from targets is planned,
// done or not. A missing artifact that no job produces is ErrMissingDependency.
func NewPlan(repo domain.Repository, targets []domain.Artifact, force bool) (*Plan, error) {
	planned := make(map[domain.NodeID]struct{})
	cached := make(map[domain.NodeID]*domain.Job)
	seen := make(map[domain.NodeID]struct{})
	var jobs []*domain.Job

	agenda := slices.Clone(targets)
	slices.Reverse(agenda)
	for len(agenda) > 0 {
		a := agenda[len(agenda)-1]
		agenda = agenda[:len(agenda)-1]

		if _, ok := seen[a.ID()]; ok {
			continue
		}
		seen[a.ID()] = struct{}{}

		done, err := a.IsDone(repo)
		if err != nil {
			return nil, err
		}

		job := producingJob(a)
		if job == nil {
			if !done {
				return nil, zerr.With(zerr.Wrap(domain.ErrMissingDependency, ""), "node", a.String())
			}
			continue
		}

		if done && !force {
			cached[job.ID()] = job
			continue
		}
		if _, ok := planned[job.ID()]; ok {
			continue
		}
		planned[job.ID()] = struct{}{}
		jobs = append(jobs, job)

		inputs := job.Inputs()
		for i := len(inputs) - 1; i >= 0; i-- {
			agenda = append(agenda, inputs[i])
		}
	}

	// Construction order puts producers first.
	byID := func(a, b *domain.Job) int { return cmp.Compare(a.ID(), b.ID()) }
	slices.SortFunc(jobs, byID)

	plan := &Plan{Jobs: jobs}
	for id, job := range cached {
		if _, ok := planned[id]; !ok {
			plan.Cached = append(plan.Cached, job)
		}
	}
	slices.SortFunc(plan.Cached, byID)
	return plan, nil
}

func producingJob(a domain.Artifact) *domain.Job {
	for _, p := range a.Parents() {
		if j, ok := p.(*domain.Job); ok {
			return j
		}
	}
	return nil
}
