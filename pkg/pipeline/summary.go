package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/genopipe/internal/critic"
	"github.com/tyemirov/genopipe/internal/engine"
)

const (
	statusTableIndentConstant   = "  "
	absentDurationLabelConstant = "-"
)

// RenderStatusTable returns the per-task status block printed after a run.
// Rows keep execution order; failed rows carry the preserved task error and
// skipped rows the skip reason.
func RenderStatusTable(outcome engine.RunOutcome) string {
	if len(outcome.Results) == 0 {
		return ""
	}

	identifierWidth := 0
	statusWidth := 0
	for _, taskResult := range outcome.Results {
		if len(taskResult.TaskIdentifier) > identifierWidth {
			identifierWidth = len(taskResult.TaskIdentifier)
		}
		if len(taskResult.Status) > statusWidth {
			statusWidth = len(taskResult.Status)
		}
	}

	rows := make([]string, 0, len(outcome.Results))
	for _, taskResult := range outcome.Results {
		row := fmt.Sprintf(
			"%s%-*s  %-*s  %s",
			statusTableIndentConstant,
			identifierWidth, taskResult.TaskIdentifier,
			statusWidth, string(taskResult.Status),
			taskDurationLabel(taskResult),
		)
		if detail := taskDetail(taskResult); len(detail) > 0 {
			row = row + "  " + detail
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

// RenderSummaryLine returns the one-line run summary printed after the
// status table.
func RenderSummaryLine(outcome engine.RunOutcome) string {
	if len(outcome.Results) == 0 {
		return ""
	}

	statusCounts := outcome.ResultsByStatus()
	parts := []string{
		fmt.Sprintf("Summary: run=%s", outcome.RunIdentifier),
		fmt.Sprintf("status=%s", outcome.Status),
		fmt.Sprintf("tasks=%d", len(outcome.Results)),
		fmt.Sprintf("succeeded=%d", statusCounts[engine.TaskStatusSucceeded]),
		fmt.Sprintf("failed=%d", statusCounts[engine.TaskStatusFailed]),
		fmt.Sprintf("skipped=%d", statusCounts[engine.TaskStatusSkipped]),
		fmt.Sprintf("duration_human=%s", humanDuration(outcome.Duration)),
		fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()),
	}
	return strings.Join(parts, " ")
}

// RenderFindingsLine returns the one-line critic summary printed after the
// consistency checks.
func RenderFindingsLine(report critic.FindingsReport) string {
	severityCounts := report.CountBySeverity()
	parts := []string{
		fmt.Sprintf("Critic: status=%s", report.OverallStatus()),
		fmt.Sprintf("findings=%d", len(report.Findings)),
		fmt.Sprintf("error=%d", severityCounts[critic.SeverityError]),
		fmt.Sprintf("warning=%d", severityCounts[critic.SeverityWarning]),
		fmt.Sprintf("info=%d", severityCounts[critic.SeverityInfo]),
	}
	return strings.Join(parts, " ")
}

func taskDurationLabel(taskResult engine.TaskResult) string {
	if taskResult.StartedAt.IsZero() || taskResult.FinishedAt.IsZero() {
		return absentDurationLabelConstant
	}
	return taskResult.FinishedAt.Sub(taskResult.StartedAt).Round(time.Millisecond).String()
}

func taskDetail(taskResult engine.TaskResult) string {
	switch taskResult.Status {
	case engine.TaskStatusFailed:
		return taskResult.FailureMessage
	case engine.TaskStatusSkipped:
		return taskResult.SkipReason
	default:
		return ""
	}
}

func humanDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(time.Millisecond).String()
}
