package domain

import (
	"context"
	"slices"
	"sync"

	"go.trai.ch/zerr"
)

// Runner supplies the behavior of a job. Run is expected to load its inputs, compute
// a result and save it into the job's outputs.
type Runner interface {
	Run(ctx context.Context, repo Repository) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, repo Repository) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, repo Repository) error {
	return f(ctx, repo)
}

// DefaultOutput is the name of the output returned by NewOutput.
const DefaultOutput = ""

// Job is a computation over an ordered list of input artifacts.
//
// The identity of a job covers its definition and the identities of its inputs and
// nothing else. Any value able to change the result must therefore be passed as an
// input artifact or as a definition param; anything else is invisible to the cache.
type Job struct {
	nodeBase

	name   string
	def    Definition
	inputs []Artifact
	runner Runner

	outputsMu sync.Mutex
	outputs   map[string]Artifact
}

// NewJob creates a job. Every input must come from g.
func NewJob(g *Graph, name string, def Definition, runner Runner, inputs ...Artifact) (*Job, error) {
	for _, in := range inputs {
		if err := g.owns(in); err != nil {
			return nil, zerr.With(err, "job", name)
		}
	}

	j := &Job{
		name:    name,
		def:     def,
		inputs:  slices.Clone(inputs),
		runner:  runner,
		outputs: make(map[string]Artifact),
	}
	g.add(j, "job "+name, j.ComputeIdentityHash)
	return j, nil
}

// Name returns the job name. The name is a label and is not part of the identity.
func (j *Job) Name() string {
	return j.name
}

// Definition returns the job definition.
func (j *Job) Definition() Definition {
	return j.def
}

// Inputs returns the input artifacts in declared order.
func (j *Job) Inputs() []Artifact {
	return slices.Clone(j.inputs)
}

// Parents returns the inputs as nodes.
func (j *Job) Parents() []Node {
	ps := make([]Node, len(j.inputs))
	for i, in := range j.inputs {
		ps[i] = in
	}
	return ps
}

// ProducingJobsOfInputs returns the jobs that produce the inputs, flattened, in
// input order. Inputs not produced by a job contribute nothing.
func (j *Job) ProducingJobsOfInputs() []*Job {
	var jobs []*Job
	for _, in := range j.inputs {
		for _, p := range in.Parents() {
			if pj, ok := p.(*Job); ok {
				jobs = append(jobs, pj)
			}
		}
	}
	return jobs
}

// Outputs returns the outputs requested so far, ordered by name.
func (j *Job) Outputs() []Artifact {
	j.outputsMu.Lock()
	defer j.outputsMu.Unlock()

	names := make([]string, 0, len(j.outputs))
	for name := range j.outputs {
		names = append(names, name)
	}
	slices.Sort(names)

	outs := make([]Artifact, len(names))
	for i, name := range names {
		outs[i] = j.outputs[name]
	}
	return outs
}

// Run executes the job's runner.
func (j *Job) Run(ctx context.Context, repo Repository) error {
	if j.runner == nil {
		return zerr.With(zerr.Wrap(ErrUnimplementedComputation, ""), "job", j.name)
	}
	return j.runner.Run(ctx, repo)
}

// IsDone reports whether every requested output is done. A job with no requested
// outputs is never done.
func (j *Job) IsDone(repo Repository) (bool, error) {
	outs := j.Outputs()
	if len(outs) == 0 {
		return false, nil
	}
	for _, out := range outs {
		done, err := out.IsDone(repo)
		if err != nil || !done {
			return false, err
		}
	}
	return true, nil
}

// ComputeIdentityHash hashes the variant, the job definition and the identity of
// every input in order.
func (j *Job) ComputeIdentityHash() (Hash, error) {
	d := j.graph.digester
	parts := make([][]byte, 0, len(j.inputs)+3)
	parts = append(parts,
		[]byte(HashDefinition(d, jobDefinition)),
		[]byte(HashDefinition(d, j.def)),
		countPart(len(j.inputs)),
	)
	for _, in := range j.inputs {
		h, err := in.IdentityHash()
		if err != nil {
			return "", err
		}
		parts = append(parts, []byte(h))
	}
	return d.Sum(parts...), nil
}

// CheckOwnIdentityHash fails with ErrHashDrift if the memoized hash of the job no
// longer matches its definition and inputs.
func (j *Job) CheckOwnIdentityHash() error {
	return CheckIdentityHash(j)
}

// NewOutput returns the default output of j.
func NewOutput[T any](j *Job) (*JobOutput[T], error) {
	return Output[T](j, DefaultOutput)
}

// Output returns the output of j called name, creating it on first request. Asking
// again for the same name returns the same artifact.
func Output[T any](j *Job, name string) (*JobOutput[T], error) {
	j.outputsMu.Lock()
	defer j.outputsMu.Unlock()

	if existing, ok := j.outputs[name]; ok {
		typed, ok := existing.(*JobOutput[T])
		if !ok {
			err := zerr.With(zerr.Wrap(ErrOutputTypeMismatch, ""), "job", j.name)
			return nil, zerr.With(err, "output", name)
		}
		return typed, nil
	}

	label := "output of " + j.name
	if name != DefaultOutput {
		label = "output " + name + " of " + j.name
	}
	out := &JobOutput[T]{job: j, name: name}
	j.graph.add(out, label, out.ComputeIdentityHash)
	j.outputs[name] = out
	return out, nil
}
