package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tyemirov/genopipe/internal/engine"
	"github.com/tyemirov/genopipe/internal/plan"
)

// Runner executes compiled analysis plans.
type Runner interface {
	Run(executionContext context.Context, analysisPlan *plan.Plan, options engine.RuntimeOptions) (engine.RunOutcome, error)
}

// Factory constructs a Runner given engine dependencies.
type Factory func(engine.Dependencies) Runner

type planExecutor interface {
	Execute(executionContext context.Context, analysisPlan *plan.Plan, options engine.RuntimeOptions) (engine.RunOutcome, error)
}

type runnerAdapter struct {
	executor planExecutor
}

func (adapter runnerAdapter) Run(executionContext context.Context, analysisPlan *plan.Plan, options engine.RuntimeOptions) (engine.RunOutcome, error) {
	return adapter.executor.Execute(executionContext, analysisPlan, options)
}

// Dependencies configures resolved runners and their status reporting.
type Dependencies struct {
	Engine              engine.Dependencies
	Output              io.Writer
	Errors              io.Writer
	DisableStatusReport bool
}

// Resolve returns either the provided factory result or a default
// engine-backed runner. Either way the runner prints the per-task status
// table and the run summary line after every run.
func Resolve(factory Factory, dependencies Dependencies) Runner {
	var base Runner
	if factory != nil {
		base = factory(dependencies.Engine)
	}
	if base == nil {
		base = runnerAdapter{executor: engine.NewExecutor(dependencies.Engine)}
	}
	return statusRunner{
		delegate:     base,
		dependencies: dependencies,
	}
}

type statusRunner struct {
	delegate     Runner
	dependencies Dependencies
}

func (runner statusRunner) Run(executionContext context.Context, analysisPlan *plan.Plan, options engine.RuntimeOptions) (engine.RunOutcome, error) {
	outcome, runError := runner.delegate.Run(executionContext, analysisPlan, options)
	runner.printStatus(outcome)
	return outcome, runError
}

func (runner statusRunner) printStatus(outcome engine.RunOutcome) {
	if runner.dependencies.DisableStatusReport {
		return
	}
	writer := runner.statusWriter()
	if writer == nil {
		return
	}

	if table := RenderStatusTable(outcome); len(table) > 0 {
		fmt.Fprintln(writer, table)
	}
	summary := RenderSummaryLine(outcome)
	if len(strings.TrimSpace(summary)) == 0 {
		return
	}
	fmt.Fprintln(writer, summary)
}

func (runner statusRunner) statusWriter() io.Writer {
	if runner.dependencies.Output != nil {
		return runner.dependencies.Output
	}
	if runner.dependencies.Errors != nil {
		return runner.dependencies.Errors
	}
	return nil
}
