// Package registry maps task type identifiers to runnable task bodies and
// publishes the output contract each type guarantees on success.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

const (
	emptyTaskTypeMessageConstant         = "task type must not be empty"
	missingRunnerMessageTemplateConstant = "%w: task type %q has no runner"
	duplicateTypeMessageTemplateConstant = "%w: task type %q registered twice"
	runnerRequiredMessageConstant        = "task runner must not be nil"
)

// ErrUnknownTaskType indicates a lookup for a task type that was never registered.
var ErrUnknownTaskType = errors.New("unknown task type")

// ErrDuplicateTaskType indicates a second registration for an existing task type.
var ErrDuplicateTaskType = errors.New("duplicate task type")

// ValueRange bounds a numeric output value, inclusive on both ends.
type ValueRange struct {
	Minimum float64
	Maximum float64
}

// Contains reports whether the candidate value falls inside the range.
func (valueRange ValueRange) Contains(candidate float64) bool {
	return candidate >= valueRange.Minimum && candidate <= valueRange.Maximum
}

// Contract declares what a task type guarantees about its outputs. The
// consistency checker consumes contracts; the executor never inspects them.
type Contract struct {
	TaskType string
	// OutputKeys lists the output names guaranteed to be present after success.
	OutputKeys []string
	// NumericRanges bounds numeric outputs by output key.
	NumericRanges map[string]ValueRange
	// PrimaryEntityKey names the output listing the primary entity
	// identifiers the task operated on, empty when the task has none.
	PrimaryEntityKey string
	// IntentionalFilter marks task types expected to narrow the primary
	// entity set relative to their upstream dependencies.
	IntentionalFilter bool
}

// RunEnvironment is the view of a run that task bodies receive alongside
// their resolved configuration.
type RunEnvironment interface {
	RunIdentifier() string
	ArtifactsDirectory() string
	TaskOutputs(taskIdentifier string) (map[string]any, bool)
}

// TaskRunner is the capability interface every task body implements.
type TaskRunner interface {
	Invoke(executionContext context.Context, configuration map[string]any, environment RunEnvironment) (map[string]any, error)
}

type registration struct {
	contract Contract
	runner   TaskRunner
}

// Registry holds the registered task types for one process.
type Registry struct {
	registrations map[string]registration
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{registrations: map[string]registration{}}
}

// Register adds a task type with its contract and runner.
func (taskRegistry *Registry) Register(contract Contract, runner TaskRunner) error {
	if len(contract.TaskType) == 0 {
		return errors.New(emptyTaskTypeMessageConstant)
	}
	if runner == nil {
		return errors.New(runnerRequiredMessageConstant)
	}
	if _, exists := taskRegistry.registrations[contract.TaskType]; exists {
		return fmt.Errorf(duplicateTypeMessageTemplateConstant, ErrDuplicateTaskType, contract.TaskType)
	}
	taskRegistry.registrations[contract.TaskType] = registration{contract: contract, runner: runner}
	return nil
}

// Runner returns the task body registered for the provided type.
func (taskRegistry *Registry) Runner(taskType string) (TaskRunner, bool) {
	entry, exists := taskRegistry.registrations[taskType]
	if !exists {
		return nil, false
	}
	return entry.runner, true
}

// Contract returns the contract registered for the provided type.
func (taskRegistry *Registry) Contract(taskType string) (Contract, bool) {
	entry, exists := taskRegistry.registrations[taskType]
	if !exists {
		return Contract{}, false
	}
	return entry.contract, true
}

// Invoke runs the task body registered for the provided type.
func (taskRegistry *Registry) Invoke(executionContext context.Context, taskType string, configuration map[string]any, environment RunEnvironment) (map[string]any, error) {
	entry, exists := taskRegistry.registrations[taskType]
	if !exists {
		return nil, fmt.Errorf(missingRunnerMessageTemplateConstant, ErrUnknownTaskType, taskType)
	}
	return entry.runner.Invoke(executionContext, configuration, environment)
}

// Types lists the registered task types in sorted order.
func (taskRegistry *Registry) Types() []string {
	taskTypes := make([]string, 0, len(taskRegistry.registrations))
	for taskType := range taskRegistry.registrations {
		taskTypes = append(taskTypes, taskType)
	}
	sort.Strings(taskTypes)
	return taskTypes
}
