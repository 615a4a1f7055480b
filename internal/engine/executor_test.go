package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/genopipe/internal/plan"
	"github.com/tyemirov/genopipe/internal/registry"
)

const (
	engineTestRunIdentifierConstant = "engine-test-run"
	engineTestSampleConstant        = "NA12878"
	engineTestInputPathConstant     = "/data/sample.vcf"
)

type recordingTaskRunner struct {
	mutex         sync.Mutex
	invocations   []map[string]any
	outputs       map[string]any
	invokeError   error
	delay         time.Duration
	activeWorkers *atomic.Int32
	peakWorkers   *atomic.Int32
}

func (runner *recordingTaskRunner) Invoke(_ context.Context, configuration map[string]any, _ registry.RunEnvironment) (map[string]any, error) {
	runner.mutex.Lock()
	runner.invocations = append(runner.invocations, configuration)
	runner.mutex.Unlock()

	if runner.activeWorkers != nil && runner.peakWorkers != nil {
		currentWorkers := runner.activeWorkers.Add(1)
		for {
			peak := runner.peakWorkers.Load()
			if currentWorkers <= peak || runner.peakWorkers.CompareAndSwap(peak, currentWorkers) {
				break
			}
		}
		defer runner.activeWorkers.Add(-1)
	}

	if runner.delay > 0 {
		time.Sleep(runner.delay)
	}
	if runner.invokeError != nil {
		return nil, runner.invokeError
	}
	return runner.outputs, nil
}

func (runner *recordingTaskRunner) invocationCount() int {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()
	return len(runner.invocations)
}

func (runner *recordingTaskRunner) lastInvocation() map[string]any {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()
	if len(runner.invocations) == 0 {
		return nil
	}
	return runner.invocations[len(runner.invocations)-1]
}

func buildEnginePlan(t *testing.T, outputDirectory string, tasks []plan.TaskSpec) *plan.Plan {
	t.Helper()
	analysisPlan, planError := plan.NewPlan(
		engineTestRunIdentifierConstant,
		plan.RunParameters{
			AnalysisType:     "germline",
			InputPath:        engineTestInputPathConstant,
			SampleIdentifier: engineTestSampleConstant,
			OutputDirectory:  outputDirectory,
		},
		tasks,
		time.Date(2026, time.April, 2, 11, 30, 0, 0, time.UTC),
	)
	require.NoError(t, planError)
	return analysisPlan
}

func buildEngineRegistry(t *testing.T, runnersByType map[string]*recordingTaskRunner) *registry.Registry {
	t.Helper()
	taskRegistry := registry.NewRegistry()
	for taskType, taskRunner := range runnersByType {
		require.NoError(t, taskRegistry.Register(registry.Contract{TaskType: taskType}, taskRunner))
	}
	return taskRegistry
}

func TestExecuteRunsLinearPlanToCompletion(t *testing.T) {
	outputDirectory := t.TempDir()
	extractRunner := &recordingTaskRunner{outputs: map[string]any{"records_file": "/artifacts/records.tsv", "record_count": 12}}
	summarizeRunner := &recordingTaskRunner{outputs: map[string]any{"summary_file": "/artifacts/summary.txt"}}

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "extract", Type: "extract", Config: map[string]any{"input": engineTestInputPathConstant}},
		{
			Identifier: "summarize",
			Type:       "summarize",
			DependsOn:  []string{"extract"},
			Config: map[string]any{
				"records": "${output.extract.records_file}",
				"count":   "${output.extract.record_count}",
			},
		},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"extract":   extractRunner,
			"summarize": summarizeRunner,
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusAllSucceeded, outcome.Status)
	require.Equal(t, engineTestRunIdentifierConstant, outcome.RunIdentifier)
	require.Empty(t, outcome.Failures)

	require.Len(t, outcome.Results, 2)
	require.Equal(t, "extract", outcome.Results[0].TaskIdentifier)
	require.Equal(t, "summarize", outcome.Results[1].TaskIdentifier)
	for _, taskResult := range outcome.Results {
		require.Equal(t, TaskStatusSucceeded, taskResult.Status)
		require.False(t, taskResult.StartedAt.IsZero())
		require.False(t, taskResult.FinishedAt.IsZero())
	}

	require.Equal(t, 1, summarizeRunner.invocationCount())
	resolvedConfiguration := summarizeRunner.lastInvocation()
	require.Equal(t, "/artifacts/records.tsv", resolvedConfiguration["records"])
	require.Equal(t, 12, resolvedConfiguration["count"])

	storedRecord, recordExists, loadError := NewResultsStore(outputDirectory).Load()
	require.NoError(t, loadError)
	require.True(t, recordExists)
	require.Equal(t, RunStatusAllSucceeded, storedRecord.Status)
	require.Equal(t, engineTestRunIdentifierConstant, storedRecord.RunIdentifier)
	require.Len(t, storedRecord.Results, 2)
}

func TestExecuteContinuesIndependentBranchesAfterFailure(t *testing.T) {
	outputDirectory := t.TempDir()
	annotateFailure := errors.New("annotation service returned 503")

	fetchRunner := &recordingTaskRunner{outputs: map[string]any{"variants_file": "/artifacts/variants.vcf"}}
	annotateRunner := &recordingTaskRunner{invokeError: annotateFailure}
	indexRunner := &recordingTaskRunner{outputs: map[string]any{"index_file": "/artifacts/variants.idx"}}
	publishRunner := &recordingTaskRunner{outputs: map[string]any{}}

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "fetch", Type: "fetch", Config: map[string]any{}},
		{Identifier: "annotate", Type: "annotate", DependsOn: []string{"fetch"}, Config: map[string]any{"variants": "${output.fetch.variants_file}"}},
		{Identifier: "index", Type: "index", DependsOn: []string{"fetch"}, Config: map[string]any{"variants": "${output.fetch.variants_file}"}},
		{Identifier: "publish", Type: "publish", DependsOn: []string{"annotate"}, Config: map[string]any{}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"fetch":    fetchRunner,
			"annotate": annotateRunner,
			"index":    indexRunner,
			"publish":  publishRunner,
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusPartiallyFailed, outcome.Status)

	annotateResult, annotateExists := outcome.ResultByTask("annotate")
	require.True(t, annotateExists)
	require.Equal(t, TaskStatusFailed, annotateResult.Status)
	require.Equal(t, annotateFailure.Error(), annotateResult.FailureMessage)

	indexResult, indexExists := outcome.ResultByTask("index")
	require.True(t, indexExists)
	require.Equal(t, TaskStatusSucceeded, indexResult.Status)

	publishResult, publishExists := outcome.ResultByTask("publish")
	require.True(t, publishExists)
	require.Equal(t, TaskStatusSkipped, publishResult.Status)
	require.Equal(t, "dependency annotate finished failed", publishResult.SkipReason)
	require.Equal(t, 0, publishRunner.invocationCount())

	require.Len(t, outcome.Failures, 1)
	require.Equal(t, "annotate", outcome.Failures[0].TaskIdentifier)
	require.Equal(t, "task annotate failed: "+annotateFailure.Error(), outcome.Failures[0].Message)
}

func TestExecuteAttributesCollectedFailuresToTasks(t *testing.T) {
	outputDirectory := t.TempDir()
	scoreFailure := errors.New("scoring model unavailable")
	evidenceFailure := errors.Join(errors.New("clinvar lookup failed"), errors.New("gnomad lookup failed"))

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "score", Type: "score", Config: map[string]any{}},
		{Identifier: "evidence", Type: "evidence", Config: map[string]any{}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"score":    {invokeError: scoreFailure},
			"evidence": {invokeError: evidenceFailure},
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusPartiallyFailed, outcome.Status)

	require.Len(t, outcome.Failures, 2)
	require.Equal(t, "score", outcome.Failures[0].TaskIdentifier)
	require.Equal(t, "task score failed: "+scoreFailure.Error(), outcome.Failures[0].Message)
	require.Equal(t, "evidence", outcome.Failures[1].TaskIdentifier)
	require.Equal(t, "task evidence failed: "+evidenceFailure.Error(), outcome.Failures[1].Message)

	scoreResult, scoreExists := outcome.ResultByTask("score")
	require.True(t, scoreExists)
	require.Equal(t, scoreFailure.Error(), scoreResult.FailureMessage)
}

func TestExecuteStopOnErrorHaltsRemainingTasks(t *testing.T) {
	outputDirectory := t.TempDir()
	filterRunner := &recordingTaskRunner{invokeError: errors.New("input file is corrupt")}
	scoreRunner := &recordingTaskRunner{outputs: map[string]any{}}
	reportRunner := &recordingTaskRunner{outputs: map[string]any{}}

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "filter", Type: "filter", Config: map[string]any{}},
		{Identifier: "score", Type: "score", Config: map[string]any{}},
		{Identifier: "report", Type: "report", DependsOn: []string{"score"}, Config: map[string]any{}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"filter": filterRunner,
			"score":  scoreRunner,
			"report": reportRunner,
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{StopOnError: true})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusHaltedOnError, outcome.Status)

	reportResult, reportExists := outcome.ResultByTask("report")
	require.True(t, reportExists)
	require.Equal(t, TaskStatusSkipped, reportResult.Status)
	require.Equal(t, skipHaltReasonConstant, reportResult.SkipReason)
	require.Equal(t, 0, reportRunner.invocationCount())
}

func TestExecuteReusesSucceededResultsOnResume(t *testing.T) {
	outputDirectory := t.TempDir()
	alphaRunner := &recordingTaskRunner{outputs: map[string]any{"records_file": "/artifacts/fresh.tsv"}}
	betaRunner := &recordingTaskRunner{outputs: map[string]any{}}

	resultsStore := NewResultsStore(outputDirectory)
	require.NoError(t, resultsStore.Save(RunRecord{
		RunIdentifier: engineTestRunIdentifierConstant,
		Status:        RunStatusInProgress,
		StartedAt:     time.Date(2026, time.April, 2, 11, 0, 0, 0, time.UTC),
		Results: []TaskResult{
			{
				TaskIdentifier: "alpha",
				Status:         TaskStatusSucceeded,
				Outputs:        map[string]any{"records_file": "/artifacts/persisted.tsv"},
			},
			{TaskIdentifier: "beta", Status: TaskStatusFailed, FailureMessage: "interrupted"},
		},
	}))

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "alpha", Type: "alpha", Config: map[string]any{}},
		{Identifier: "beta", Type: "beta", DependsOn: []string{"alpha"}, Config: map[string]any{"records": "${output.alpha.records_file}"}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"alpha": alphaRunner,
			"beta":  betaRunner,
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{Resume: true})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusAllSucceeded, outcome.Status)

	require.Equal(t, 0, alphaRunner.invocationCount())
	require.Equal(t, 1, betaRunner.invocationCount())
	require.Equal(t, "/artifacts/persisted.tsv", betaRunner.lastInvocation()["records"])

	alphaResult, alphaExists := outcome.ResultByTask("alpha")
	require.True(t, alphaExists)
	require.Equal(t, TaskStatusSucceeded, alphaResult.Status)
	require.Equal(t, "/artifacts/persisted.tsv", alphaResult.Outputs["records_file"])
}

func TestExecuteRejectsResumeFromDifferentRun(t *testing.T) {
	outputDirectory := t.TempDir()
	require.NoError(t, NewResultsStore(outputDirectory).Save(RunRecord{
		RunIdentifier: "someone-elses-run",
		Status:        RunStatusAllSucceeded,
		StartedAt:     time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC),
	}))

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "alpha", Type: "alpha", Config: map[string]any{}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"alpha": {outputs: map[string]any{}},
		}),
	})

	_, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{Resume: true})
	require.Error(t, executeError)
	require.ErrorContains(t, executeError, "belongs to run")
}

func TestExecuteFailsTaskOnMissingOutputKey(t *testing.T) {
	outputDirectory := t.TempDir()
	alphaRunner := &recordingTaskRunner{outputs: map[string]any{"unrelated_key": true}}
	betaRunner := &recordingTaskRunner{outputs: map[string]any{}}

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "alpha", Type: "alpha", Config: map[string]any{}},
		{Identifier: "beta", Type: "beta", DependsOn: []string{"alpha"}, Config: map[string]any{"records": "${output.alpha.records_file}"}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"alpha": alphaRunner,
			"beta":  betaRunner,
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusPartiallyFailed, outcome.Status)
	require.Equal(t, 0, betaRunner.invocationCount())

	betaResult, betaExists := outcome.ResultByTask("beta")
	require.True(t, betaExists)
	require.Equal(t, TaskStatusFailed, betaResult.Status)
	require.Contains(t, betaResult.FailureMessage, "published no output")
}

func TestExecuteTimeoutSkipsTasksNotYetRunning(t *testing.T) {
	outputDirectory := t.TempDir()
	slowRunner := &recordingTaskRunner{delay: 60 * time.Millisecond, outputs: map[string]any{"payload": "done"}}
	lateRunner := &recordingTaskRunner{outputs: map[string]any{}}

	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "slow", Type: "slow", Config: map[string]any{}},
		{Identifier: "late", Type: "late", DependsOn: []string{"slow"}, Config: map[string]any{}},
	})

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{
			"slow": slowRunner,
			"late": lateRunner,
		}),
	})

	outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{Timeout: 20 * time.Millisecond})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusPartiallyFailed, outcome.Status)

	slowResult, slowExists := outcome.ResultByTask("slow")
	require.True(t, slowExists)
	require.Equal(t, TaskStatusSucceeded, slowResult.Status)

	lateResult, lateExists := outcome.ResultByTask("late")
	require.True(t, lateExists)
	require.Equal(t, TaskStatusSkipped, lateResult.Status)
	require.Equal(t, skipTimeoutReasonConstant, lateResult.SkipReason)
	require.Equal(t, 0, lateRunner.invocationCount())
}

func TestExecuteRunsIndependentTasksWithBoundedWorkers(t *testing.T) {
	testCases := []struct {
		name            string
		maxWorkers      int
		expectedMinimum int32
		expectedMaximum int32
	}{
		{name: "sequential_default", maxWorkers: 0, expectedMinimum: 1, expectedMaximum: 1},
		{name: "bounded_pool", maxWorkers: 3, expectedMinimum: 2, expectedMaximum: 3},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var activeWorkers atomic.Int32
			var peakWorkers atomic.Int32

			runnersByType := map[string]*recordingTaskRunner{}
			tasks := make([]plan.TaskSpec, 0, 3)
			for _, shardName := range []string{"shard_a", "shard_b", "shard_c"} {
				runnersByType[shardName] = &recordingTaskRunner{
					delay:         25 * time.Millisecond,
					outputs:       map[string]any{},
					activeWorkers: &activeWorkers,
					peakWorkers:   &peakWorkers,
				}
				tasks = append(tasks, plan.TaskSpec{Identifier: shardName, Type: shardName, Config: map[string]any{}})
			}

			outputDirectory := t.TempDir()
			analysisPlan := buildEnginePlan(t, outputDirectory, tasks)
			executor := NewExecutor(Dependencies{TaskRegistry: buildEngineRegistry(t, runnersByType)})

			outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{MaxWorkers: testCase.maxWorkers})
			require.NoError(t, executeError, "case %d", testCaseIndex)
			require.Equal(t, RunStatusAllSucceeded, outcome.Status)
			require.GreaterOrEqual(t, peakWorkers.Load(), testCase.expectedMinimum)
			require.LessOrEqual(t, peakWorkers.Load(), testCase.expectedMaximum)
		})
	}
}

func TestExecuteConcurrentTasksKeepDistinctOutputsUnderRandomDelays(t *testing.T) {
	const iterationCount = 20
	shardNames := []string{"shard_a", "shard_b", "shard_c", "shard_d"}

	for iteration := 0; iteration < iterationCount; iteration++ {
		delaySource := rand.New(rand.NewSource(int64(iteration)))

		runnersByType := map[string]*recordingTaskRunner{}
		tasks := make([]plan.TaskSpec, 0, len(shardNames))
		for _, shardName := range shardNames {
			runnersByType[shardName] = &recordingTaskRunner{
				delay:   time.Duration(delaySource.Intn(10)) * time.Millisecond,
				outputs: map[string]any{"shard_name": shardName},
			}
			tasks = append(tasks, plan.TaskSpec{Identifier: shardName, Type: shardName, Config: map[string]any{}})
		}

		outputDirectory := t.TempDir()
		analysisPlan := buildEnginePlan(t, outputDirectory, tasks)
		executor := NewExecutor(Dependencies{TaskRegistry: buildEngineRegistry(t, runnersByType)})

		outcome, executeError := executor.Execute(context.Background(), analysisPlan, RuntimeOptions{MaxWorkers: len(shardNames)})
		require.NoError(t, executeError, "iteration %d", iteration)
		require.Equal(t, RunStatusAllSucceeded, outcome.Status, "iteration %d", iteration)

		for _, shardName := range shardNames {
			taskResult, found := outcome.ResultByTask(shardName)
			require.True(t, found, "iteration %d", iteration)
			require.Equal(t, TaskStatusSucceeded, taskResult.Status, "iteration %d", iteration)
			require.Equal(t, shardName, taskResult.Outputs["shard_name"], "iteration %d", iteration)
		}
	}
}

func TestExecuteValidatesInputs(t *testing.T) {
	outputDirectory := t.TempDir()
	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "alpha", Type: "alpha", Config: map[string]any{}},
	})

	missingRegistryExecutor := NewExecutor(Dependencies{})
	_, registryError := missingRegistryExecutor.Execute(context.Background(), analysisPlan, RuntimeOptions{})
	require.Error(t, registryError)
	require.ErrorContains(t, registryError, "task registry")

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{"alpha": {outputs: map[string]any{}}}),
	})
	_, planError := executor.Execute(context.Background(), nil, RuntimeOptions{})
	require.Error(t, planError)
	require.ErrorContains(t, planError, "at least one task")
}

func TestExecuteSkipsEverythingWhenContextAlreadyCancelled(t *testing.T) {
	outputDirectory := t.TempDir()
	alphaRunner := &recordingTaskRunner{outputs: map[string]any{}}
	analysisPlan := buildEnginePlan(t, outputDirectory, []plan.TaskSpec{
		{Identifier: "alpha", Type: "alpha", Config: map[string]any{}},
	})

	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	executor := NewExecutor(Dependencies{
		TaskRegistry: buildEngineRegistry(t, map[string]*recordingTaskRunner{"alpha": alphaRunner}),
	})

	outcome, executeError := executor.Execute(cancelledContext, analysisPlan, RuntimeOptions{})
	require.NoError(t, executeError)
	require.Equal(t, RunStatusPartiallyFailed, outcome.Status)

	alphaResult, alphaExists := outcome.ResultByTask("alpha")
	require.True(t, alphaExists)
	require.Equal(t, TaskStatusSkipped, alphaResult.Status)
	require.Equal(t, skipCancelReasonConstant, alphaResult.SkipReason)
	require.Equal(t, 0, alphaRunner.invocationCount())
}
