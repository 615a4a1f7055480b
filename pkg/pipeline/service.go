package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/critic"
	"github.com/tyemirov/genopipe/internal/engine"
	"github.com/tyemirov/genopipe/internal/plan"
	"github.com/tyemirov/genopipe/internal/registry"
)

const (
	runDirectoryTimestampLayoutConstant = "20060102_150405"
	runDirectoryNameTemplateConstant    = "%s_%s"
	runDirectoryPermissionsConstant     = 0o755

	createRunDirectoryTemplateConstant = "create run directory %s: %w"
	storeFindingsTemplateConstant      = "store critic findings: %w"
	noResultsRecordedTemplateConstant  = "no recorded results under %s"
)

// ServiceDependencies configures collaborators for the pipeline service.
// The task registry is the only collaborator without an inert default; the
// executor refuses to run without one.
type ServiceDependencies struct {
	Logger              *zap.Logger
	TaskRegistry        *registry.Registry
	RunnerFactory       Factory
	IdentifierFactory   func() string
	Clock               func() time.Time
	Output              io.Writer
	Errors              io.Writer
	DisableStatusReport bool
}

// Service bundles plan compilation, execution, and consistency checking for
// one configured installation. Commands construct it once and call the
// operation matching their verb.
type Service struct {
	dependencies ServiceDependencies
}

// NewService constructs a Service, filling optional collaborators with
// inert defaults.
func NewService(dependencies ServiceDependencies) *Service {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	return &Service{dependencies: dependencies}
}

// AnalysisRequest carries the inputs for one analysis run. The output
// directory in Parameters names the root under which the run directory is
// created.
type AnalysisRequest struct {
	Parameters plan.RunParameters
	Settings   plan.AnalysisSettings
	Runtime    engine.RuntimeOptions
}

// AnalysisResult reports the artifacts produced by one pipeline operation.
type AnalysisResult struct {
	RunDirectory string
	Plan         *plan.Plan
	Outcome      engine.RunOutcome
	Findings     critic.FindingsReport
}

// Analyze runs the full pipeline: compile and persist the plan, execute it,
// check the recorded results, and persist the findings. Task failures are
// conveyed through the outcome and the findings, not the returned error.
func (service *Service) Analyze(executionContext context.Context, request AnalysisRequest) (AnalysisResult, error) {
	compiledPlan, runDirectory, prepareError := service.PreparePlan(request)
	if prepareError != nil {
		return AnalysisResult{}, prepareError
	}
	return service.execute(executionContext, compiledPlan, runDirectory, request.Runtime)
}

// PreparePlan compiles the plan for the request and persists it into a
// fresh run directory named <sample>_<timestamp> under the requested output
// directory. The run directory is created only after compilation succeeds.
func (service *Service) PreparePlan(request AnalysisRequest) (*plan.Plan, string, error) {
	runDirectory := service.runDirectoryPath(request.Parameters)

	parameters := request.Parameters
	parameters.OutputDirectory = runDirectory

	compiler := plan.NewCompiler(plan.CompilerDependencies{
		TaskRegistry:      service.dependencies.TaskRegistry,
		AnalysisSettings:  request.Settings,
		IdentifierFactory: service.dependencies.IdentifierFactory,
		Clock:             service.dependencies.Clock,
	})
	compiledPlan, compileError := compiler.Compile(parameters)
	if compileError != nil {
		return nil, "", compileError
	}

	if directoryError := os.MkdirAll(runDirectory, runDirectoryPermissionsConstant); directoryError != nil {
		return nil, "", fmt.Errorf(createRunDirectoryTemplateConstant, runDirectory, directoryError)
	}
	if storeError := plan.Store(compiledPlan, filepath.Join(runDirectory, plan.PlanFileName)); storeError != nil {
		return nil, "", storeError
	}

	service.dependencies.Logger.Info(
		"plan_prepared",
		zap.String("run_id", compiledPlan.RunIdentifier),
		zap.String("run_directory", runDirectory),
		zap.Int("task_count", len(compiledPlan.Tasks)),
	)
	return compiledPlan, runDirectory, nil
}

// ExecutePlan loads the stored plan from a run directory and executes it,
// re-running the consistency checks afterwards. Results and findings land
// in the provided run directory even when the plan records an older
// location.
func (service *Service) ExecutePlan(executionContext context.Context, runDirectory string, options engine.RuntimeOptions) (AnalysisResult, error) {
	loadedPlan, loadError := plan.Load(filepath.Join(runDirectory, plan.PlanFileName))
	if loadError != nil {
		return AnalysisResult{}, loadError
	}
	return service.execute(executionContext, loadedPlan, runDirectory, options)
}

// Critique re-runs the consistency checks over a stored plan and its
// recorded results, rewriting the findings report.
func (service *Service) Critique(runDirectory string) (critic.FindingsReport, error) {
	loadedPlan, loadError := plan.Load(filepath.Join(runDirectory, plan.PlanFileName))
	if loadError != nil {
		return critic.FindingsReport{}, loadError
	}

	storedRecord, recordExists, recordError := engine.NewResultsStore(runDirectory).Load()
	if recordError != nil {
		return critic.FindingsReport{}, recordError
	}
	if !recordExists {
		return critic.FindingsReport{}, fmt.Errorf(noResultsRecordedTemplateConstant, runDirectory)
	}

	return service.recordFindings(loadedPlan, storedRecord.Results, runDirectory)
}

func (service *Service) execute(executionContext context.Context, analysisPlan *plan.Plan, runDirectory string, options engine.RuntimeOptions) (AnalysisResult, error) {
	result := AnalysisResult{RunDirectory: runDirectory, Plan: analysisPlan}

	runner := service.resolveRunner(runDirectory)
	outcome, runError := runner.Run(executionContext, analysisPlan, options)
	result.Outcome = outcome
	if runError != nil {
		return result, runError
	}

	// Consistency checks cover completed runs only; a halted run never
	// finished its graph, so its outputs are not checked.
	if outcome.Status != engine.RunStatusAllSucceeded && outcome.Status != engine.RunStatusPartiallyFailed {
		return result, nil
	}

	findings, findingsError := service.recordFindings(analysisPlan, outcome.Results, runDirectory)
	result.Findings = findings
	if findingsError != nil {
		return result, findingsError
	}
	return result, nil
}

// resolveRunner builds the runner for one run directory so recorded results
// always land next to the plan being executed.
func (service *Service) resolveRunner(runDirectory string) Runner {
	return Resolve(service.dependencies.RunnerFactory, Dependencies{
		Engine: engine.Dependencies{
			Logger:       service.dependencies.Logger,
			TaskRegistry: service.dependencies.TaskRegistry,
			ResultsStore: engine.NewResultsStore(runDirectory),
			Clock:        service.dependencies.Clock,
		},
		Output:              service.dependencies.Output,
		Errors:              service.dependencies.Errors,
		DisableStatusReport: service.dependencies.DisableStatusReport,
	})
}

func (service *Service) recordFindings(analysisPlan *plan.Plan, taskResults []engine.TaskResult, runDirectory string) (critic.FindingsReport, error) {
	checker := critic.NewChecker(critic.Dependencies{
		TaskRegistry: service.dependencies.TaskRegistry,
		Logger:       service.dependencies.Logger,
		Clock:        service.dependencies.Clock,
	})
	findings := checker.Check(analysisPlan, taskResults)
	if storeError := critic.StoreReport(findings, filepath.Join(runDirectory, critic.ReportFileName)); storeError != nil {
		return findings, fmt.Errorf(storeFindingsTemplateConstant, storeError)
	}
	service.printFindings(findings)
	return findings, nil
}

func (service *Service) printFindings(findings critic.FindingsReport) {
	if service.dependencies.DisableStatusReport {
		return
	}
	writer := service.statusWriter()
	if writer == nil {
		return
	}
	fmt.Fprintln(writer, RenderFindingsLine(findings))
}

func (service *Service) statusWriter() io.Writer {
	if service.dependencies.Output != nil {
		return service.dependencies.Output
	}
	if service.dependencies.Errors != nil {
		return service.dependencies.Errors
	}
	return nil
}

// runDirectoryPath names the run directory for the parameters. Timestamps
// come from the service clock so repeated runs of one sample sort by time.
func (service *Service) runDirectoryPath(parameters plan.RunParameters) string {
	sampleIdentifier := strings.TrimSpace(parameters.SampleIdentifier)
	timestamp := service.dependencies.Clock().Format(runDirectoryTimestampLayoutConstant)
	return filepath.Join(
		strings.TrimSpace(parameters.OutputDirectory),
		fmt.Sprintf(runDirectoryNameTemplateConstant, sampleIdentifier, timestamp),
	)
}
