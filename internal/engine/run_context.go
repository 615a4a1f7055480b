package engine

import (
	"fmt"
	"sync"

	"github.com/tyemirov/genopipe/internal/plan"
)

const (
	unknownTaskMessageTemplateConstant      = "unknown task %q"
	transitionDeniedMessageTemplateConstant = "task %q cannot move from %s to %s"
)

type resultCell struct {
	mutex  sync.Mutex
	record TaskResult
}

// RunContext carries the state scoped to one executor invocation: the plan
// under execution, the per-task results, and the artifact directory shared
// with task bodies. The executor is the sole writer of results; task bodies
// and the reference resolver only read them.
type RunContext struct {
	analysisPlan *plan.Plan
	resultCells  map[string]*resultCell
	taskOrder    []string
}

// NewRunContext initializes run state with every task Pending.
func NewRunContext(analysisPlan *plan.Plan) *RunContext {
	resultCells := make(map[string]*resultCell, len(analysisPlan.Tasks))
	taskOrder := make([]string, 0, len(analysisPlan.Tasks))
	for _, task := range analysisPlan.Tasks {
		resultCells[task.Identifier] = &resultCell{
			record: TaskResult{TaskIdentifier: task.Identifier, Status: TaskStatusPending},
		}
		taskOrder = append(taskOrder, task.Identifier)
	}
	return &RunContext{
		analysisPlan: analysisPlan,
		resultCells:  resultCells,
		taskOrder:    taskOrder,
	}
}

// Plan returns the plan under execution.
func (runContext *RunContext) Plan() *plan.Plan {
	return runContext.analysisPlan
}

// RunIdentifier returns the identifier of the run being executed.
func (runContext *RunContext) RunIdentifier() string {
	return runContext.analysisPlan.RunIdentifier
}

// ArtifactsDirectory returns the directory task bodies write artifacts into.
func (runContext *RunContext) ArtifactsDirectory() string {
	return runContext.analysisPlan.Parameters.OutputDirectory
}

// TaskOutputs returns a copy of the identified task's outputs when that task
// has succeeded.
func (runContext *RunContext) TaskOutputs(taskIdentifier string) (map[string]any, bool) {
	cell, exists := runContext.resultCells[taskIdentifier]
	if !exists {
		return nil, false
	}
	cell.mutex.Lock()
	defer cell.mutex.Unlock()
	if cell.record.Status != TaskStatusSucceeded {
		return nil, false
	}
	outputs := make(map[string]any, len(cell.record.Outputs))
	for outputKey, outputValue := range cell.record.Outputs {
		outputs[outputKey] = outputValue
	}
	return outputs, true
}

// SnapshotResult returns a copy of the identified task's current result.
func (runContext *RunContext) SnapshotResult(taskIdentifier string) (TaskResult, bool) {
	cell, exists := runContext.resultCells[taskIdentifier]
	if !exists {
		return TaskResult{}, false
	}
	cell.mutex.Lock()
	defer cell.mutex.Unlock()
	return cell.record, true
}

// OrderedResults returns copies of all task results in plan declaration order.
func (runContext *RunContext) OrderedResults() []TaskResult {
	results := make([]TaskResult, 0, len(runContext.taskOrder))
	for _, taskIdentifier := range runContext.taskOrder {
		cell := runContext.resultCells[taskIdentifier]
		cell.mutex.Lock()
		results = append(results, cell.record)
		cell.mutex.Unlock()
	}
	return results
}

// seedSucceededResult installs a prior run's succeeded result so its outputs
// are reused without re-invoking the task.
func (runContext *RunContext) seedSucceededResult(result TaskResult) {
	if result.Status != TaskStatusSucceeded {
		return
	}
	cell, exists := runContext.resultCells[result.TaskIdentifier]
	if !exists {
		return
	}
	cell.mutex.Lock()
	defer cell.mutex.Unlock()
	cell.record = result
}

// transition moves the identified task to the next status under its result
// lock, applying the mutation while the lock is held. The lock guards only
// the transition, never a task body's execution.
func (runContext *RunContext) transition(taskIdentifier string, next TaskStatus, mutate func(*TaskResult)) error {
	cell, exists := runContext.resultCells[taskIdentifier]
	if !exists {
		return fmt.Errorf(unknownTaskMessageTemplateConstant, taskIdentifier)
	}
	cell.mutex.Lock()
	defer cell.mutex.Unlock()
	if !statusTransitionAllowed(cell.record.Status, next) {
		return fmt.Errorf(transitionDeniedMessageTemplateConstant, taskIdentifier, cell.record.Status, next)
	}
	cell.record.Status = next
	if mutate != nil {
		mutate(&cell.record)
	}
	return nil
}
