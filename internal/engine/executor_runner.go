package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/registry"
)

const (
	skipDependencyReasonTemplateConstant = "dependency %s finished %s"
	skipHaltReasonConstant               = "run halted before task start"
	skipTimeoutReasonConstant            = "run timeout exceeded before task start"
	skipCancelReasonConstant             = "run cancelled before task start"
)

type stageExecutionResult struct {
	failures        []TaskFailure
	haltedOnFailure bool
}

// haltState coordinates the stop-scheduling decision between workers. Once
// set it is never cleared; already-running tasks finish on their own.
type haltState struct {
	mutex           sync.Mutex
	halted          bool
	reason          string
	causedByFailure bool
}

func (state *haltState) requestHalt(reason string, causedByFailure bool) {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	if state.halted {
		return
	}
	state.halted = true
	state.reason = reason
	state.causedByFailure = causedByFailure
}

func (state *haltState) snapshot() (bool, string) {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	return state.halted, state.reason
}

func (state *haltState) failureCaused() bool {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	return state.halted && state.causedByFailure
}

type stageRunnerConfiguration struct {
	runContext   *RunContext
	taskRegistry *registry.Registry
	resultsStore *ResultsStore
	logger       *zap.Logger
	clock        func() time.Time
	options      RuntimeOptions
	startedAt    time.Time
}

type stageRunner struct {
	configuration stageRunnerConfiguration
	deadline      time.Time
	workerSlots   chan struct{}
	halt          haltState

	failureMutex sync.Mutex
	taskErrors   []error

	persistMutex sync.Mutex
}

func newStageRunner(configuration stageRunnerConfiguration) *stageRunner {
	runner := &stageRunner{
		configuration: configuration,
		workerSlots:   make(chan struct{}, normalizeWorkerCount(configuration.options.MaxWorkers)),
	}
	if configuration.options.Timeout > 0 {
		runner.deadline = configuration.startedAt.Add(configuration.options.Timeout)
	}
	return runner
}

// run walks the stage layout in order. Worker slots are acquired in
// declaration order before each launch, so a single-slot run executes tasks
// strictly sequentially while wider pools only parallelize within a stage.
func (runner *stageRunner) run(executionContext context.Context, stageLayout [][]string) stageExecutionResult {
	for stageIndex, stageTaskIdentifiers := range stageLayout {
		stageStart := runner.configuration.clock()
		var waitGroup sync.WaitGroup

		for _, taskIdentifier := range stageTaskIdentifiers {
			snapshot, snapshotExists := runner.configuration.runContext.SnapshotResult(taskIdentifier)
			if !snapshotExists {
				continue
			}
			if snapshot.Status == TaskStatusSucceeded {
				runner.configuration.logger.Info("task_reused", zap.String("task_id", taskIdentifier))
				continue
			}

			if skipReason, shouldSkip := runner.schedulingSkipReason(executionContext); shouldSkip {
				runner.skipTask(taskIdentifier, skipReason)
				continue
			}

			if dependencyReason, blocked := runner.dependencySkipReason(taskIdentifier); blocked {
				runner.skipTask(taskIdentifier, dependencyReason)
				continue
			}

			runner.workerSlots <- struct{}{}
			if skipReason, shouldSkip := runner.schedulingSkipReason(executionContext); shouldSkip {
				<-runner.workerSlots
				runner.skipTask(taskIdentifier, skipReason)
				continue
			}

			waitGroup.Add(1)
			go func(launchedIdentifier string) {
				defer waitGroup.Done()
				defer func() { <-runner.workerSlots }()
				runner.executeTask(executionContext, launchedIdentifier)
			}(taskIdentifier)
		}

		waitGroup.Wait()

		runner.configuration.logger.Info(
			"stage_complete",
			zap.Int("stage_index", stageIndex),
			zap.Duration("duration", runner.configuration.clock().Sub(stageStart)),
		)
	}

	runner.failureMutex.Lock()
	aggregateError := errors.Join(runner.taskErrors...)
	runner.failureMutex.Unlock()

	return stageExecutionResult{
		failures:        taskFailuresFrom(aggregateError),
		haltedOnFailure: runner.halt.failureCaused(),
	}
}

// schedulingSkipReason reports why no further task may start, if a halt,
// deadline, or caller cancellation is in effect.
func (runner *stageRunner) schedulingSkipReason(executionContext context.Context) (string, bool) {
	if halted, haltReason := runner.halt.snapshot(); halted {
		return haltReason, true
	}
	if !runner.deadline.IsZero() && runner.configuration.clock().After(runner.deadline) {
		runner.halt.requestHalt(skipTimeoutReasonConstant, false)
		return skipTimeoutReasonConstant, true
	}
	if executionContext.Err() != nil {
		runner.halt.requestHalt(skipCancelReasonConstant, false)
		return skipCancelReasonConstant, true
	}
	return "", false
}

// dependencySkipReason reports the first declared dependency that did not
// succeed. Stage barriers guarantee dependency results are terminal here.
func (runner *stageRunner) dependencySkipReason(taskIdentifier string) (string, bool) {
	taskSpec, specExists := runner.configuration.runContext.Plan().TaskByIdentifier(taskIdentifier)
	if !specExists {
		return "", false
	}
	for _, dependencyIdentifier := range taskSpec.DependsOn {
		dependencySnapshot, dependencyExists := runner.configuration.runContext.SnapshotResult(dependencyIdentifier)
		if !dependencyExists {
			continue
		}
		if dependencySnapshot.Status != TaskStatusSucceeded {
			return formatDependencySkipReason(dependencyIdentifier, dependencySnapshot.Status), true
		}
	}
	return "", false
}

func formatDependencySkipReason(dependencyIdentifier string, dependencyStatus TaskStatus) string {
	return fmt.Sprintf(skipDependencyReasonTemplateConstant, dependencyIdentifier, dependencyStatus)
}

func (runner *stageRunner) executeTask(executionContext context.Context, taskIdentifier string) {
	taskSpec, specExists := runner.configuration.runContext.Plan().TaskByIdentifier(taskIdentifier)
	if !specExists {
		return
	}

	resolvedConfiguration, resolveError := resolveTaskConfiguration(taskSpec.Config, runner.configuration.runContext)
	if resolveError != nil {
		runner.failTask(taskIdentifier, TaskStatusPending, resolveError, time.Time{})
		return
	}

	taskStart := runner.configuration.clock()
	if transitionError := runner.configuration.runContext.transition(taskIdentifier, TaskStatusRunning, func(result *TaskResult) {
		result.StartedAt = taskStart
	}); transitionError != nil {
		runner.configuration.logger.Error(
			"task_transition_denied",
			zap.String("task_id", taskIdentifier),
			zap.Error(transitionError),
		)
		return
	}
	runner.configuration.logger.Info(
		"task_start",
		zap.String("task_id", taskIdentifier),
		zap.String("task_type", taskSpec.Type),
	)
	runner.persistSnapshot()

	taskOutputs, invokeError := runner.configuration.taskRegistry.Invoke(
		executionContext,
		taskSpec.Type,
		resolvedConfiguration,
		runner.configuration.runContext,
	)
	taskDuration := runner.configuration.clock().Sub(taskStart)

	if invokeError != nil {
		runner.failTask(taskIdentifier, TaskStatusRunning, invokeError, taskStart)
		runner.configuration.logger.Warn(
			"task_failed",
			zap.String("task_id", taskIdentifier),
			zap.Duration("duration", taskDuration),
			zap.Error(invokeError),
		)
		return
	}

	if transitionError := runner.configuration.runContext.transition(taskIdentifier, TaskStatusSucceeded, func(result *TaskResult) {
		result.Outputs = taskOutputs
		result.FinishedAt = runner.configuration.clock()
	}); transitionError != nil {
		runner.configuration.logger.Error(
			"task_transition_denied",
			zap.String("task_id", taskIdentifier),
			zap.Error(transitionError),
		)
		return
	}
	runner.configuration.logger.Info(
		"task_complete",
		zap.String("task_id", taskIdentifier),
		zap.Duration("duration", taskDuration),
	)
	runner.persistSnapshot()
}

// failTask records a failure from either configuration resolution (while the
// task is still pending) or the task body (while running).
func (runner *stageRunner) failTask(taskIdentifier string, priorStatus TaskStatus, taskError error, startedAt time.Time) {
	if transitionError := runner.configuration.runContext.transition(taskIdentifier, TaskStatusFailed, func(result *TaskResult) {
		result.FailureMessage = taskError.Error()
		if !startedAt.IsZero() {
			result.StartedAt = startedAt
		}
		result.FinishedAt = runner.configuration.clock()
	}); transitionError != nil {
		runner.configuration.logger.Error(
			"task_transition_denied",
			zap.String("task_id", taskIdentifier),
			zap.Error(transitionError),
		)
		return
	}

	if priorStatus == TaskStatusPending {
		runner.configuration.logger.Warn(
			"task_failed",
			zap.String("task_id", taskIdentifier),
			zap.Error(taskError),
		)
	}

	runner.failureMutex.Lock()
	runner.taskErrors = append(runner.taskErrors, newTaskFailureError(taskIdentifier, taskError))
	runner.failureMutex.Unlock()

	if runner.configuration.options.StopOnError {
		runner.halt.requestHalt(skipHaltReasonConstant, true)
	}
	runner.persistSnapshot()
}

func (runner *stageRunner) skipTask(taskIdentifier string, skipReason string) {
	if transitionError := runner.configuration.runContext.transition(taskIdentifier, TaskStatusSkipped, func(result *TaskResult) {
		result.SkipReason = skipReason
	}); transitionError != nil {
		runner.configuration.logger.Error(
			"task_transition_denied",
			zap.String("task_id", taskIdentifier),
			zap.Error(transitionError),
		)
		return
	}
	runner.configuration.logger.Info(
		"task_skipped",
		zap.String("task_id", taskIdentifier),
		zap.String("reason", skipReason),
	)
	runner.persistSnapshot()
}

// persistSnapshot writes the current result table so an interrupted run can
// resume. Persistence problems never abort the run; the final save in
// Execute is the authoritative one.
func (runner *stageRunner) persistSnapshot() {
	runner.persistMutex.Lock()
	defer runner.persistMutex.Unlock()
	interimRecord := RunRecord{
		RunIdentifier: runner.configuration.runContext.RunIdentifier(),
		Status:        RunStatusInProgress,
		StartedAt:     runner.configuration.startedAt,
		Results:       runner.configuration.runContext.OrderedResults(),
	}
	if saveError := runner.configuration.resultsStore.Save(interimRecord); saveError != nil {
		runner.configuration.logger.Warn("results_save_failed", zap.Error(saveError))
	}
}
