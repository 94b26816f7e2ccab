package domain

import (
	"maps"
	"slices"
)

// Step is a named command in a pipeline. It uses InternedString for fields that are
// frequently repeated across steps.
type Step struct {
	Name InternedString
	// Command is the argv run for the step.
	Command []string
	// Inputs are file globs whose matches are content-hashed.
	Inputs []InternedString
	// Dirs are directories identified by location only.
	Dirs []InternedString
	// Dependencies are upstream steps whose outputs feed this step, in order.
	Dependencies []InternedString
	// Environment is exported to the command and is part of the step's definition.
	Environment map[string]string
}

// Definition returns the job definition of the step: the command line and the
// sorted environment, separated by a NUL entry.
func (s *Step) Definition() Definition {
	params := make([]string, 0, len(s.Command)+len(s.Environment)+1)
	params = append(params, s.Command...)
	params = append(params, "\x00")
	for _, k := range slices.Sorted(maps.Keys(s.Environment)) {
		params = append(params, k+"="+s.Environment[k])
	}
	return Definition{Kind: "command", Version: "1", Params: params}
}
