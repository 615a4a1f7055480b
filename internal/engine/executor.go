package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/plan"
	"github.com/tyemirov/genopipe/internal/registry"
)

const (
	executorMissingRegistryMessageConstant = "executor requires a task registry"
	executorMissingPlanMessageConstant     = "executor requires a compiled plan with at least one task"
	resumeRunMismatchTemplateConstant      = "results file %s belongs to run %s, not run %s"
	finalResultsSaveTemplateConstant       = "unable to persist final run results: %w"
)

// Dependencies configures shared collaborators for plan execution.
type Dependencies struct {
	Logger       *zap.Logger
	TaskRegistry *registry.Registry
	ResultsStore *ResultsStore
	Clock        func() time.Time
}

// RuntimeOptions captures user-provided execution modifiers.
type RuntimeOptions struct {
	StopOnError bool
	MaxWorkers  int
	Timeout     time.Duration
	Resume      bool
}

// Executor walks a compiled plan stage by stage, invoking registered task
// bodies and recording their results. It is the sole writer of task results.
type Executor struct {
	dependencies Dependencies
}

// NewExecutor constructs an Executor, filling optional collaborators with
// inert defaults.
func NewExecutor(dependencies Dependencies) *Executor {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	return &Executor{dependencies: dependencies}
}

// Execute runs every task in the plan that is eligible under its declared
// dependencies and returns the aggregate outcome. Task failures are conveyed
// through the outcome, not the returned error; a non-nil error reports
// problems with the run itself (invalid input, resume mismatch, persistence).
func (executor *Executor) Execute(executionContext context.Context, analysisPlan *plan.Plan, options RuntimeOptions) (RunOutcome, error) {
	if executor.dependencies.TaskRegistry == nil {
		return RunOutcome{}, errors.New(executorMissingRegistryMessageConstant)
	}
	if analysisPlan == nil || len(analysisPlan.Tasks) == 0 {
		return RunOutcome{}, errors.New(executorMissingPlanMessageConstant)
	}

	startTime := executor.dependencies.Clock()
	outcome := RunOutcome{
		RunIdentifier: analysisPlan.RunIdentifier,
		StartTime:     startTime,
	}

	resultsStore := executor.dependencies.ResultsStore
	if resultsStore == nil {
		resultsStore = NewResultsStore(analysisPlan.Parameters.OutputDirectory)
	}

	runContext := NewRunContext(analysisPlan)

	if options.Resume {
		if seedError := seedFromStoredResults(runContext, resultsStore, analysisPlan.RunIdentifier); seedError != nil {
			return outcome, seedError
		}
	}

	stageLayout := analysisPlan.Stages()
	executor.dependencies.Logger.Info(
		"run_start",
		zap.String("run_id", analysisPlan.RunIdentifier),
		zap.Int("task_count", len(analysisPlan.Tasks)),
		zap.Int("stage_count", len(stageLayout)),
		zap.Int("max_workers", normalizeWorkerCount(options.MaxWorkers)),
		zap.Bool("stop_on_error", options.StopOnError),
		zap.Bool("resume", options.Resume),
	)

	runner := newStageRunner(stageRunnerConfiguration{
		runContext:   runContext,
		taskRegistry: executor.dependencies.TaskRegistry,
		resultsStore: resultsStore,
		logger:       executor.dependencies.Logger,
		clock:        executor.dependencies.Clock,
		options:      options,
		startedAt:    startTime,
	})
	stageResult := runner.run(executionContext, stageLayout)

	outcome.Results = runContext.OrderedResults()
	outcome.Failures = stageResult.failures
	outcome.Status = determineRunStatus(outcome.Results, stageResult.haltedOnFailure)
	outcome.EndTime = executor.dependencies.Clock()
	outcome.Duration = outcome.EndTime.Sub(outcome.StartTime)

	finalRecord := RunRecord{
		RunIdentifier: analysisPlan.RunIdentifier,
		Status:        outcome.Status,
		StartedAt:     startTime,
		FinishedAt:    outcome.EndTime,
		Results:       outcome.Results,
	}
	if saveError := resultsStore.Save(finalRecord); saveError != nil {
		return outcome, fmt.Errorf(finalResultsSaveTemplateConstant, saveError)
	}

	statusCounts := outcome.ResultsByStatus()
	executor.dependencies.Logger.Info(
		"run_complete",
		zap.String("run_id", analysisPlan.RunIdentifier),
		zap.String("status", string(outcome.Status)),
		zap.Duration("duration", outcome.Duration),
		zap.Int("succeeded", statusCounts[TaskStatusSucceeded]),
		zap.Int("failed", statusCounts[TaskStatusFailed]),
		zap.Int("skipped", statusCounts[TaskStatusSkipped]),
	)
	if summary := summarizeFailures(outcome.Failures); len(summary) > 0 {
		executor.dependencies.Logger.Warn("run_failures", zap.String("summary", summary))
	}

	return outcome, nil
}

// seedFromStoredResults replays previously succeeded tasks into the run
// context so their outputs feed downstream resolution without re-invocation.
func seedFromStoredResults(runContext *RunContext, resultsStore *ResultsStore, runIdentifier string) error {
	storedRecord, recordExists, loadError := resultsStore.Load()
	if loadError != nil {
		return loadError
	}
	if !recordExists {
		return nil
	}
	if storedRecord.RunIdentifier != runIdentifier {
		return fmt.Errorf(resumeRunMismatchTemplateConstant, resultsStore.Path(), storedRecord.RunIdentifier, runIdentifier)
	}
	for _, storedResult := range storedRecord.Results {
		runContext.seedSucceededResult(storedResult)
	}
	return nil
}

func determineRunStatus(results []TaskResult, haltedOnFailure bool) RunStatus {
	if haltedOnFailure {
		return RunStatusHaltedOnError
	}
	for _, taskResult := range results {
		if taskResult.Status != TaskStatusSucceeded {
			return RunStatusPartiallyFailed
		}
	}
	return RunStatusAllSucceeded
}

func normalizeWorkerCount(requestedWorkers int) int {
	if requestedWorkers < 1 {
		return 1
	}
	return requestedWorkers
}
