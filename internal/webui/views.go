package webui

import "time"

// RunStatusPlanned marks a run directory that holds a stored plan but no
// recorded results yet. Executed runs report the engine's run status values.
const RunStatusPlanned = "planned"

// HealthView reports service liveness and configuration.
type HealthView struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Version       string `json:"version,omitempty"`
	RunsDirectory string `json:"runs_directory"`
	RunCount      int    `json:"run_count"`
}

// RunSummaryView describes one recorded run directory.
type RunSummaryView struct {
	Name             string    `json:"name"`
	RunIdentifier    string    `json:"run_id"`
	SampleIdentifier string    `json:"sample_id"`
	AnalysisType     string    `json:"analysis_type"`
	Phenotype        string    `json:"phenotype,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	StartedAt        time.Time `json:"started_at,omitzero"`
	FinishedAt       time.Time `json:"finished_at,omitzero"`
	TaskCount        int       `json:"task_count"`
	SucceededCount   int       `json:"succeeded"`
	FailedCount      int       `json:"failed"`
	SkippedCount     int       `json:"skipped"`
	CriticStatus     string    `json:"critic_status,omitempty"`
}

// RunListView wraps the run collection for list responses.
type RunListView struct {
	Count int              `json:"count"`
	Runs  []RunSummaryView `json:"runs"`
}

// ParametersView mirrors the analysis parameters recorded in the plan.
type ParametersView struct {
	AnalysisType     string `json:"analysis_type"`
	InputPath        string `json:"input_path"`
	SampleIdentifier string `json:"sample_id"`
	Phenotype        string `json:"phenotype,omitempty"`
	OutputDirectory  string `json:"output_directory"`
}

// TaskView describes one task's planned shape and recorded execution state.
// Tasks without a recorded result report a pending status.
type TaskView struct {
	TaskIdentifier       string    `json:"task_id"`
	Type                 string    `json:"type"`
	DependsOn            []string  `json:"depends_on,omitempty"`
	Status               string    `json:"status"`
	FailureMessage       string    `json:"error,omitempty"`
	SkipReason           string    `json:"skip_reason,omitempty"`
	StartedAt            time.Time `json:"started_at,omitzero"`
	FinishedAt           time.Time `json:"finished_at,omitzero"`
	DurationMilliseconds int64     `json:"duration_ms,omitempty"`
}

// RunDetailView extends the run summary with parameters and per-task state.
type RunDetailView struct {
	RunSummaryView

	Parameters ParametersView `json:"parameters"`
	Tasks      []TaskView     `json:"tasks"`
}

// FindingsView renders a stored critic report for API consumers.
type FindingsView struct {
	RunIdentifier string        `json:"run_id"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Status        string        `json:"status"`
	ErrorCount    int           `json:"error_count"`
	WarningCount  int           `json:"warning_count"`
	InfoCount     int           `json:"info_count"`
	Findings      []FindingView `json:"findings"`
}

// FindingView renders one critic finding.
type FindingView struct {
	Severity        string   `json:"severity"`
	Check           string   `json:"check"`
	TaskIdentifiers []string `json:"task_ids,omitempty"`
	OutputKey       string   `json:"output_key,omitempty"`
	Message         string   `json:"message"`
}

// ErrorView carries a failure message in API error responses.
type ErrorView struct {
	Error string `json:"error"`
}
