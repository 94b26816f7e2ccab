// Package pipeline turns a configured pipeline into a graph of command jobs.
package pipeline

import (
	"path/filepath"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// Builder creates domain graphs from pipelines.
type Builder struct {
	hasher   ports.Hasher
	resolver ports.InputResolver
	executor ports.Executor
}

// NewBuilder creates a new Builder.
func NewBuilder(hasher ports.Hasher, resolver ports.InputResolver, executor ports.Executor) *Builder {
	return &Builder{
		hasher:   hasher,
		resolver: resolver,
		executor: executor,
	}
}

// Build is the graph of one pipeline. Every step is a job with a single output.
type Build struct {
	Graph *domain.Graph

	jobs    map[string]*domain.Job
	outputs map[string]*domain.JobOutput[[]byte]
}

// Job returns the job of a step.
func (b *Build) Job(step string) (*domain.Job, error) {
	j, ok := b.jobs[step]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrStepNotFound, ""), "step", step)
	}
	return j, nil
}

// Output returns the output of a step.
func (b *Build) Output(step string) (*domain.JobOutput[[]byte], error) {
	out, ok := b.outputs[step]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrStepNotFound, ""), "step", step)
	}
	return out, nil
}

// Outputs returns the outputs of several steps in the given order.
func (b *Build) Outputs(steps []string) ([]*domain.JobOutput[[]byte], error) {
	outs := make([]*domain.JobOutput[[]byte], 0, len(steps))
	for _, step := range steps {
		out, err := b.Output(step)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// Build creates the graph of p. The pipeline must have been validated.
//
// Fixed files are hashed while the graph is built, so a missing input fails here and
// not when the step runs. A file named by several steps is a single node.
func (b *Builder) Build(p *domain.Pipeline) (*Build, error) {
	digester, err := b.hasher.Digester(p.Settings.Hash)
	if err != nil {
		return nil, err
	}

	state := &buildState{
		builder: b,
		dir:     p.Settings.Dir,
		graph:   domain.NewGraph(digester),
		files:   make(map[string]*domain.FixedFile[[]byte]),
		dirs:    make(map[string]*domain.FixedDir),
		result: &Build{
			jobs:    make(map[string]*domain.Job, p.Len()),
			outputs: make(map[string]*domain.JobOutput[[]byte], p.Len()),
		},
	}
	state.result.Graph = state.graph

	for step := range p.Walk() {
		if err := state.addStep(step); err != nil {
			return nil, zerr.With(err, "step", step.Name.String())
		}
	}
	return state.result, nil
}

type buildState struct {
	builder *Builder
	dir     string
	graph   *domain.Graph
	files   map[string]*domain.FixedFile[[]byte]
	dirs    map[string]*domain.FixedDir
	result  *Build
}

func (s *buildState) addStep(step domain.Step) error {
	def := step.Definition()
	runner := &commandRunner{
		step:     step,
		dir:      s.dir,
		executor: s.builder.executor,
	}
	var inputs []domain.Artifact

	if len(step.Inputs) > 0 {
		patterns := make([]string, len(step.Inputs))
		for i, in := range step.Inputs {
			patterns[i] = in.String()
		}
		paths, err := s.builder.resolver.ResolveInputs(patterns, s.dir)
		if err != nil {
			return err
		}

		// The staged layout is visible to the command, so it is part of the definition.
		def.Params = append(def.Params, "\x00")
		for _, path := range paths {
			f, err := s.fixedFile(path)
			if err != nil {
				return err
			}
			rel := stagedName(s.dir, path)
			def.Params = append(def.Params, rel)
			runner.files = append(runner.files, stagedFile{file: f, rel: rel})
			inputs = append(inputs, f)
		}
	}

	for _, d := range step.Dirs {
		location := d.String()
		if !filepath.IsAbs(location) {
			location = filepath.Join(s.dir, location)
		}
		fd := s.fixedDir(filepath.Clean(location))
		runner.dirs = append(runner.dirs, fd)
		inputs = append(inputs, fd)
	}

	for _, dep := range step.Dependencies {
		out, ok := s.result.outputs[dep.String()]
		if !ok {
			return zerr.With(zerr.Wrap(domain.ErrMissingDependency, ""), "dependency", dep.String())
		}
		runner.upstream = append(runner.upstream, out)
		inputs = append(inputs, out)
	}

	name := step.Name.String()
	job, err := domain.NewJob(s.graph, name, def, runner, inputs...)
	if err != nil {
		return err
	}
	out, err := domain.NewOutput[[]byte](job)
	if err != nil {
		return err
	}
	runner.output = out

	s.result.jobs[name] = job
	s.result.outputs[name] = out
	return nil
}

func (s *buildState) fixedFile(path string) (*domain.FixedFile[[]byte], error) {
	if f, ok := s.files[path]; ok {
		return f, nil
	}
	f, err := domain.NewFixedFile[[]byte](s.graph, path, domain.BytesFormat{})
	if err != nil {
		return nil, err
	}
	s.files[path] = f
	return f, nil
}

func (s *buildState) fixedDir(location string) *domain.FixedDir {
	if d, ok := s.dirs[location]; ok {
		return d
	}
	d := domain.NewFixedDir(s.graph, location)
	s.dirs[location] = d
	return d
}

// stagedName is the path of an input file below the staging directory: relative to
// the pipeline directory when inside it, the full path under "abs" otherwise.
func stagedName(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(filepath.Join("abs", path))
}
