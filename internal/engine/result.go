// Package engine executes compiled plans: it resolves output references,
// invokes registered task bodies in dependency order, records task results,
// and persists them so interrupted runs can resume.
package engine

import "time"

// TaskStatus names one state in a task's lifecycle. Transitions are
// monotonic; no task ever leaves a terminal status.
type TaskStatus string

const (
	// TaskStatusPending marks a task that has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning marks a task whose body is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSucceeded marks a task that completed and published outputs.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed marks a task whose body or configuration resolution failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped marks a task that never ran because a dependency did
	// not succeed or the run halted first.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Terminal reports whether the status permits no further transitions.
func (status TaskStatus) Terminal() bool {
	switch status {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

var allowedStatusTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	TaskStatusPending: {
		TaskStatusRunning: {},
		TaskStatusFailed:  {},
		TaskStatusSkipped: {},
	},
	TaskStatusRunning: {
		TaskStatusSucceeded: {},
		TaskStatusFailed:    {},
	},
}

func statusTransitionAllowed(current TaskStatus, next TaskStatus) bool {
	permitted, exists := allowedStatusTransitions[current]
	if !exists {
		return false
	}
	_, allowed := permitted[next]
	return allowed
}

// TaskResult records one task's execution state within a run.
type TaskResult struct {
	TaskIdentifier string         `yaml:"task_id"`
	Status         TaskStatus     `yaml:"status"`
	Outputs        map[string]any `yaml:"outputs,omitempty"`
	FailureMessage string         `yaml:"error,omitempty"`
	SkipReason     string         `yaml:"skip_reason,omitempty"`
	StartedAt      time.Time      `yaml:"started_at,omitempty"`
	FinishedAt     time.Time      `yaml:"finished_at,omitempty"`
}

// RunStatus summarizes an entire run.
type RunStatus string

const (
	// RunStatusInProgress marks a run that has not reached an outcome; it
	// appears only in interim persisted records.
	RunStatusInProgress RunStatus = "in_progress"
	// RunStatusAllSucceeded marks a run in which every task succeeded.
	RunStatusAllSucceeded RunStatus = "all_succeeded"
	// RunStatusPartiallyFailed marks a run with failed or skipped tasks whose
	// independent branches still completed.
	RunStatusPartiallyFailed RunStatus = "partially_failed"
	// RunStatusHaltedOnError marks a run stopped early by stop-on-error or a
	// run-level timeout.
	RunStatusHaltedOnError RunStatus = "halted_on_error"
)

// TaskFailure pairs a failed task with its preserved error message.
type TaskFailure struct {
	TaskIdentifier string
	Message        string
}

// RunOutcome reports the overall result of one Execute invocation.
type RunOutcome struct {
	RunIdentifier string
	Status        RunStatus
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	Results       []TaskResult
	Failures      []TaskFailure
}

// ResultByTask returns the recorded result for the identified task.
func (outcome RunOutcome) ResultByTask(taskIdentifier string) (TaskResult, bool) {
	for _, result := range outcome.Results {
		if result.TaskIdentifier == taskIdentifier {
			return result, true
		}
	}
	return TaskResult{}, false
}

// ResultsByStatus counts results per status.
func (outcome RunOutcome) ResultsByStatus() map[TaskStatus]int {
	counts := map[TaskStatus]int{}
	for _, result := range outcome.Results {
		counts[result.Status]++
	}
	return counts
}
