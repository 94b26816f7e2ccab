package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// AllSteps is the reserved target selecting every step of a pipeline.
const AllSteps = "all"

// Pipeline is a set of steps together with the settings they run under.
type Pipeline struct {
	Settings Settings

	steps          map[InternedString]Step
	executionOrder []InternedString
}

// NewPipeline creates a new empty Pipeline.
func NewPipeline(settings Settings) *Pipeline {
	return &Pipeline{
		Settings: settings,
		steps:    make(map[InternedString]Step),
	}
}

// AddStep adds a step to the pipeline.
// It returns an error if a step with the same name already exists.
func (p *Pipeline) AddStep(s *Step) error {
	if s.Name.String() == AllSteps {
		return zerr.With(zerr.Wrap(ErrReservedStepName, ""), "step", AllSteps)
	}
	if _, exists := p.steps[s.Name]; exists {
		return zerr.With(zerr.Wrap(ErrStepAlreadyExists, ""), "step", s.Name.String())
	}
	p.steps[s.Name] = *s
	return nil
}

// Step looks up a step by name.
func (p *Pipeline) Step(name string) (Step, bool) {
	s, ok := p.steps[NewInternedString(name)]
	return s, ok
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// Names returns the step names sorted alphabetically.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.steps))
	for name := range p.steps {
		names = append(names, name.String())
	}
	slices.Sort(names)
	return names
}

// Validate checks for missing dependencies and cycles using a topological sort.
// It populates the execution order if successful. Steps are visited by name so the
// order is the same on every call.
func (p *Pipeline) Validate() error {
	p.executionOrder = make([]InternedString, 0, len(p.steps))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		step := p.steps[u]
		for _, dep := range step.Dependencies {
			if _, exists := p.steps[dep]; !exists {
				err := zerr.With(zerr.Wrap(ErrMissingDependency, ""), "step", u.String())
				return zerr.With(err, "dependency", dep.String())
			}
			if visited[dep] == 1 {
				return cycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		p.executionOrder = append(p.executionOrder, u)
		return nil
	}

	for _, name := range p.Names() {
		key := NewInternedString(name)
		if visited[key] == 0 {
			if err := visit(key); err != nil {
				p.executionOrder = nil
				return err
			}
		}
	}
	return nil
}

// cycleError constructs an error with cycle path metadata.
func cycleError(path []InternedString, dep InternedString) error {
	start := slices.Index(path, dep)
	names := make([]string, 0, len(path)-start+1)
	for _, n := range path[start:] {
		names = append(names, n.String())
	}
	names = append(names, dep.String())
	return zerr.With(zerr.Wrap(ErrCycleDetected, ""), "cycle", strings.Join(names, " -> "))
}

// Walk returns an iterator that yields steps in execution order.
// It assumes Validate() has been called and returned nil.
func (p *Pipeline) Walk() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for _, name := range p.executionOrder {
			if !yield(p.steps[name]) {
				return
			}
		}
	}
}

// Select resolves target names to steps, expanding AllSteps. Duplicates are dropped
// and the first occurrence wins.
func (p *Pipeline) Select(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return nil, zerr.Wrap(ErrNoTargetsSpecified, "")
	}

	seen := make(map[string]struct{}, len(targets))
	selected := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == AllSteps {
			for _, name := range p.Names() {
				if _, ok := seen[name]; !ok {
					seen[name] = struct{}{}
					selected = append(selected, name)
				}
			}
			continue
		}
		if _, ok := p.steps[NewInternedString(t)]; !ok {
			return nil, zerr.With(zerr.Wrap(ErrStepNotFound, ""), "step", t)
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			selected = append(selected, t)
		}
	}
	return selected, nil
}
