// Package critic cross-validates the accumulated outputs of a completed run.
// Checks never mutate results and never fail the run; everything they notice
// is reported as a finding.
package critic

import "time"

// FindingSeverity grades how serious a finding is.
type FindingSeverity string

const (
	SeverityInfo    FindingSeverity = "info"
	SeverityWarning FindingSeverity = "warning"
	SeverityError   FindingSeverity = "error"
)

const (
	CheckReferentialCompleteness = "referential_completeness"
	CheckCoverage                = "coverage"
	CheckValueRange              = "value_range"
	CheckSkippedImpact           = "skipped_task_impact"
	CheckScoreEvidence           = "score_evidence"
)

const (
	OverallStatusPass    = "pass"
	OverallStatusWarning = "warning"
	OverallStatusError   = "error"
)

// Finding records one observation made by a check.
type Finding struct {
	Severity        FindingSeverity `yaml:"severity"`
	Check           string          `yaml:"check"`
	TaskIdentifiers []string        `yaml:"task_ids,omitempty"`
	OutputKey       string          `yaml:"output_key,omitempty"`
	Message         string          `yaml:"message"`
}

// FindingsReport aggregates every finding produced for one run.
type FindingsReport struct {
	RunIdentifier string    `yaml:"run_id"`
	GeneratedAt   time.Time `yaml:"generated_at"`
	Findings      []Finding `yaml:"findings"`
}

// CountBySeverity tallies findings per severity.
func (report FindingsReport) CountBySeverity() map[FindingSeverity]int {
	counts := map[FindingSeverity]int{}
	for _, finding := range report.Findings {
		counts[finding.Severity]++
	}
	return counts
}

// OverallStatus collapses the report into pass, warning, or error.
func (report FindingsReport) OverallStatus() string {
	status := OverallStatusPass
	for _, finding := range report.Findings {
		if finding.Severity == SeverityError {
			return OverallStatusError
		}
		if finding.Severity == SeverityWarning {
			status = OverallStatusWarning
		}
	}
	return status
}

// FindingsByCheck returns the findings produced by one named check.
func (report FindingsReport) FindingsByCheck(checkName string) []Finding {
	var matching []Finding
	for _, finding := range report.Findings {
		if finding.Check == checkName {
			matching = append(matching, finding)
		}
	}
	return matching
}
