package plan

import "errors"

var (
	// ErrInvalidConfiguration indicates that run parameters or analysis
	// settings cannot produce a valid plan.
	ErrInvalidConfiguration = errors.New("invalid analysis configuration")
	// ErrUnknownDependency indicates a dependency on a task absent from the plan.
	ErrUnknownDependency = errors.New("unknown task dependency")
	// ErrCyclicDependency indicates that the declared dependencies contain a cycle.
	ErrCyclicDependency = errors.New("cyclic task dependencies")
	// ErrUndeclaredDependency indicates an output reference to a task missing
	// from the referencing task's declared dependencies.
	ErrUndeclaredDependency = errors.New("undeclared dependency reference")
	// ErrUnsupportedFormatVersion indicates a persisted plan whose format
	// version this build cannot execute.
	ErrUnsupportedFormatVersion = errors.New("unsupported plan format version")
)
