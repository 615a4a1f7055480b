package webui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tyemirov/genopipe/internal/critic"
	"github.com/tyemirov/genopipe/internal/engine"
	"github.com/tyemirov/genopipe/internal/plan"
)

const (
	htmlReportFileNameConstant = "report.html"

	markdownContentTypeConstant = "text/markdown; charset=utf-8"
	htmlContentTypeConstant     = "text/html; charset=utf-8"

	readRunsDirectoryTemplateConstant = "read runs directory %s: %w"
)

var (
	// ErrRunNotFound reports a run name without a loadable plan document.
	ErrRunNotFound = errors.New("run not found")
	// ErrDocumentNotFound reports a missing artifact inside a run directory.
	ErrDocumentNotFound = errors.New("document not found")
)

// RunInventory reads recorded run state from a runs directory. Directories
// without a loadable plan document are not runs and stay invisible.
type RunInventory struct {
	directory string
}

// NewRunInventory wraps a runs directory.
func NewRunInventory(directory string) *RunInventory {
	return &RunInventory{directory: directory}
}

// List returns a summary for every run directory, newest plan first.
func (inventory *RunInventory) List() ([]RunSummaryView, error) {
	entries, readError := os.ReadDir(inventory.directory)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return []RunSummaryView{}, nil
		}
		return nil, fmt.Errorf(readRunsDirectoryTemplateConstant, inventory.directory, readError)
	}
	summaries := make([]RunSummaryView, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state, stateError := inventory.load(entry.Name())
		if stateError != nil {
			continue
		}
		summaries = append(summaries, summaryView(state))
	}
	sort.Slice(summaries, func(first, second int) bool {
		if !summaries[first].CreatedAt.Equal(summaries[second].CreatedAt) {
			return summaries[first].CreatedAt.After(summaries[second].CreatedAt)
		}
		return summaries[first].Name < summaries[second].Name
	})
	return summaries, nil
}

// Detail loads one run with its parameters and per-task execution state.
func (inventory *RunInventory) Detail(runName string) (RunDetailView, error) {
	state, stateError := inventory.load(runName)
	if stateError != nil {
		return RunDetailView{}, stateError
	}
	return detailView(state), nil
}

// Findings loads the stored critic report for one run.
func (inventory *RunInventory) Findings(runName string) (FindingsView, error) {
	state, stateError := inventory.load(runName)
	if stateError != nil {
		return FindingsView{}, stateError
	}
	if !state.hasReport {
		return FindingsView{}, ErrDocumentNotFound
	}
	return findingsView(state.report), nil
}

// ReportDocument points at a rendered report artifact on disk.
type ReportDocument struct {
	Path        string
	ContentType string
}

// LocateReport finds the rendered report for one run, preferring the Markdown
// rendition when both formats exist.
func (inventory *RunInventory) LocateReport(runName string) (ReportDocument, error) {
	if !validRunName(runName) {
		return ReportDocument{}, ErrRunNotFound
	}
	runDirectory := filepath.Join(inventory.directory, runName)
	candidates := []ReportDocument{
		{Path: filepath.Join(runDirectory, plan.ReportFileName), ContentType: markdownContentTypeConstant},
		{Path: filepath.Join(runDirectory, htmlReportFileNameConstant), ContentType: htmlContentTypeConstant},
	}
	for _, candidate := range candidates {
		if _, statError := os.Stat(candidate.Path); statError == nil {
			return candidate, nil
		}
	}
	return ReportDocument{}, ErrDocumentNotFound
}

type runState struct {
	name      string
	plan      *plan.Plan
	record    engine.RunRecord
	hasRecord bool
	report    critic.FindingsReport
	hasReport bool
}

func (inventory *RunInventory) load(runName string) (runState, error) {
	if !validRunName(runName) {
		return runState{}, ErrRunNotFound
	}
	runDirectory := filepath.Join(inventory.directory, runName)
	analysisPlan, planError := plan.Load(filepath.Join(runDirectory, plan.PlanFileName))
	if planError != nil {
		return runState{}, ErrRunNotFound
	}
	state := runState{name: runName, plan: analysisPlan}
	record, recordExists, recordError := engine.NewResultsStore(runDirectory).Load()
	if recordError == nil && recordExists {
		state.record = record
		state.hasRecord = true
	}
	report, reportError := critic.LoadReport(filepath.Join(runDirectory, critic.ReportFileName))
	if reportError == nil {
		state.report = report
		state.hasReport = true
	}
	return state, nil
}

func validRunName(runName string) bool {
	if len(runName) == 0 || runName == "." || runName == ".." {
		return false
	}
	if strings.ContainsAny(runName, `/\`) {
		return false
	}
	return runName == strings.TrimSpace(runName)
}

func summaryView(state runState) RunSummaryView {
	summary := RunSummaryView{
		Name:             state.name,
		RunIdentifier:    state.plan.RunIdentifier,
		SampleIdentifier: state.plan.Parameters.SampleIdentifier,
		AnalysisType:     state.plan.Parameters.AnalysisType,
		Phenotype:        state.plan.Parameters.Phenotype,
		Status:           RunStatusPlanned,
		CreatedAt:        state.plan.CreatedAt,
		TaskCount:        len(state.plan.Tasks),
	}
	if state.hasRecord {
		summary.Status = string(state.record.Status)
		summary.StartedAt = state.record.StartedAt
		summary.FinishedAt = state.record.FinishedAt
		for _, taskResult := range state.record.Results {
			switch taskResult.Status {
			case engine.TaskStatusSucceeded:
				summary.SucceededCount++
			case engine.TaskStatusFailed:
				summary.FailedCount++
			case engine.TaskStatusSkipped:
				summary.SkippedCount++
			}
		}
	}
	if state.hasReport {
		summary.CriticStatus = state.report.OverallStatus()
	}
	return summary
}

func detailView(state runState) RunDetailView {
	resultsByIdentifier := make(map[string]engine.TaskResult, len(state.record.Results))
	for _, taskResult := range state.record.Results {
		resultsByIdentifier[taskResult.TaskIdentifier] = taskResult
	}
	taskViews := make([]TaskView, 0, len(state.plan.Tasks))
	for _, taskSpec := range state.plan.Tasks {
		taskView := TaskView{
			TaskIdentifier: taskSpec.Identifier,
			Type:           taskSpec.Type,
			DependsOn:      taskSpec.DependsOn,
			Status:         string(engine.TaskStatusPending),
		}
		if taskResult, resultFound := resultsByIdentifier[taskSpec.Identifier]; resultFound {
			taskView.Status = string(taskResult.Status)
			taskView.FailureMessage = taskResult.FailureMessage
			taskView.SkipReason = taskResult.SkipReason
			taskView.StartedAt = taskResult.StartedAt
			taskView.FinishedAt = taskResult.FinishedAt
			if !taskResult.StartedAt.IsZero() && !taskResult.FinishedAt.IsZero() {
				taskView.DurationMilliseconds = taskResult.FinishedAt.Sub(taskResult.StartedAt).Milliseconds()
			}
		}
		taskViews = append(taskViews, taskView)
	}
	return RunDetailView{
		RunSummaryView: summaryView(state),
		Parameters: ParametersView{
			AnalysisType:     state.plan.Parameters.AnalysisType,
			InputPath:        state.plan.Parameters.InputPath,
			SampleIdentifier: state.plan.Parameters.SampleIdentifier,
			Phenotype:        state.plan.Parameters.Phenotype,
			OutputDirectory:  state.plan.Parameters.OutputDirectory,
		},
		Tasks: taskViews,
	}
}

func findingsView(report critic.FindingsReport) FindingsView {
	severityCounts := report.CountBySeverity()
	findingViews := make([]FindingView, 0, len(report.Findings))
	for _, storedFinding := range report.Findings {
		findingViews = append(findingViews, FindingView{
			Severity:        string(storedFinding.Severity),
			Check:           storedFinding.Check,
			TaskIdentifiers: storedFinding.TaskIdentifiers,
			OutputKey:       storedFinding.OutputKey,
			Message:         storedFinding.Message,
		})
	}
	return FindingsView{
		RunIdentifier: report.RunIdentifier,
		GeneratedAt:   report.GeneratedAt,
		Status:        report.OverallStatus(),
		ErrorCount:    severityCounts[critic.SeverityError],
		WarningCount:  severityCounts[critic.SeverityWarning],
		InfoCount:     severityCounts[critic.SeverityInfo],
		Findings:      findingViews,
	}
}
