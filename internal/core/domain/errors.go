package domain

import "go.trai.ch/zerr"

var (
	// ErrHashDrift is returned when a node's memoized identity hash disagrees with a
	// fresh computation. The cache invariant is already broken when this happens.
	ErrHashDrift = zerr.New("identity hash drift")

	// ErrUnsupportedPersistence is returned when saving into an artifact that cannot
	// be saved (thunks, fixed directories, fixed files).
	ErrUnsupportedPersistence = zerr.New("artifact does not support saving")

	// ErrUnimplementedComputation is returned when a job has no runner or a fixed file
	// has no format.
	ErrUnimplementedComputation = zerr.New("computation not implemented")

	// ErrMissingDependency is returned when a required artifact is not done and
	// nothing in the graph can produce it, or when a step depends on an unknown step.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrForeignNode is returned when a node from one Graph is used in another.
	ErrForeignNode = zerr.New("node belongs to a different graph")

	// ErrOutputTypeMismatch is returned when a job output is requested again with a
	// different value type.
	ErrOutputTypeMismatch = zerr.New("job output requested with a different type")

	// ErrOutputNotProduced is returned when a job ran but left an output missing.
	ErrOutputNotProduced = zerr.New("job did not produce its output")

	// ErrValueNotDone is returned when loading a job output that is not in the cache.
	ErrValueNotDone = zerr.New("artifact value is not available")

	// ErrInputNotFound is returned when an input pattern matches no file.
	ErrInputNotFound = zerr.New("input not found")

	// ErrUnknownHashAlgorithm is returned for an unsupported hash algorithm name.
	ErrUnknownHashAlgorithm = zerr.New("unknown hash algorithm")

	// ErrUnknownCodec is returned for an unsupported value codec name.
	ErrUnknownCodec = zerr.New("unknown codec")

	// ErrStepAlreadyExists is returned when attempting to add a step with a name that already exists.
	ErrStepAlreadyExists = zerr.New("step already exists")

	// ErrCycleDetected is returned when a cycle is detected in the step dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrStepNotFound is returned when a requested step is not found in the pipeline.
	ErrStepNotFound = zerr.New("step not found")

	// ErrReservedStepName is returned when a step uses a reserved name.
	ErrReservedStepName = zerr.New("step name 'all' is reserved")

	// ErrNoTargetsSpecified is returned when no targets are specified for a command.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrConfigNotFound is returned when no configuration file is found.
	ErrConfigNotFound = zerr.New("configuration file not found")

	// ErrUnsupportedConfigVersion is returned for a configuration version this build does not read.
	ErrUnsupportedConfigVersion = zerr.New("unsupported configuration version")

	// ErrInvalidStepName is returned when a step name contains characters outside [a-zA-Z0-9_.-].
	ErrInvalidStepName = zerr.New("invalid step name")

	// ErrEmptyCommand is returned when a step has no command.
	ErrEmptyCommand = zerr.New("step has no command")

	// ErrInvalidSetting is returned when a setting is out of range.
	ErrInvalidSetting = zerr.New("invalid setting")

	// ErrBuildExecutionFailed is returned when one or more jobs fail.
	ErrBuildExecutionFailed = zerr.New("build execution failed")
)
