// Package report renders the final analysis document from the scored
// variants, their gathered evidence, and the filter statistics, in
// Markdown or standalone HTML form.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/tasks/evidence"
	"github.com/tyemirov/genopipe/internal/tasks/scoring"
	"github.com/tyemirov/genopipe/internal/tasks/variantfilter"
)

// TaskType identifies the report generation task.
const TaskType = "report_generation"

// Report formats selectable through the task configuration.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Report sections selectable through include_sections. An empty
// selection renders every section.
const (
	SectionSummary         = "summary"
	SectionTopVariants     = "top_variants"
	SectionEvidence        = "evidence"
	SectionRecommendations = "recommendations"
)

const (
	reportFileOutputKeyConstant       = "report_file"
	variantsReportedOutputKeyConstant = "variants_reported"

	defaultTopVariantsConstant = 10
	timestampLayoutConstant    = "2006-01-02 15:04:05"

	markdownExtensionConstant = ".md"
	htmlExtensionConstant     = ".html"

	reportFilePermissionsConstant      = 0o644
	reportDirectoryPermissionsConstant = 0o755

	decodeConfigurationTemplateConstant = "decode report configuration: %w"
	readScoresTemplateConstant          = "read scores: %w"
	readEvidenceTemplateConstant        = "read evidence: %w"
	writeReportTemplateConstant         = "write report to %s: %w"
	missingScoresMessageConstant        = "report generation requires a scores_file path"
	missingEvidenceMessageConstant      = "report generation requires an evidence_file path"
	missingReportMessageConstant        = "report generation requires a report_file path"

	reportStartMessageConstant           = "Generating analysis report"
	reportDoneMessageConstant            = "Analysis report generated"
	statisticsUnavailableMessageConstant = "Filter statistics unavailable for report"

	formatFieldConstant       = "format"
	variantCountFieldConstant = "variant_count"
	statsFileFieldConstant    = "stats_file"
)

// Configuration carries the resolved report task settings.
type Configuration struct {
	ScoresFile       string   `mapstructure:"scores_file"`
	EvidenceFile     string   `mapstructure:"evidence_file"`
	StatisticsFile   string   `mapstructure:"stats_file"`
	ReportFile       string   `mapstructure:"report_file"`
	SampleIdentifier string   `mapstructure:"sample_id"`
	Phenotype        string   `mapstructure:"phenotype"`
	TopVariants      int      `mapstructure:"top_variants"`
	Format           string   `mapstructure:"format"`
	IncludeSections  []string `mapstructure:"include_sections"`
}

// Dependencies configure a Runner. A nil Clock selects the wall clock.
type Dependencies struct {
	Logger *zap.Logger
	Clock  func() time.Time
}

// Runner renders the analysis report for a completed run.
type Runner struct {
	logger *zap.Logger
	clock  func() time.Time
}

// NewRunner builds a Runner, substituting a no-op logger and the wall
// clock when the dependencies leave them unset.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{logger: logger, clock: clock}
}

// TaskContract declares the outputs the task guarantees on success.
func TaskContract() registry.Contract {
	return registry.Contract{
		TaskType: TaskType,
		OutputKeys: []string{
			reportFileOutputKeyConstant,
			variantsReportedOutputKeyConstant,
		},
	}
}

// reportContent bundles everything the renderers draw from.
type reportContent struct {
	SampleIdentifier string
	Phenotype        string
	GeneratedAt      time.Time
	Rows             []scoring.ScoreRow
	Evidence         map[string]evidence.VariantEvidence
	Statistics       *variantfilter.Statistics
	TopVariants      int
	Sections         map[string]bool
}

// Invoke renders the report from the scores table and evidence document
// and writes it into the run directory. The report file extension is
// adjusted to match the selected format.
func (runner *Runner) Invoke(executionContext context.Context, configuration map[string]any, environment registry.RunEnvironment) (map[string]any, error) {
	settings := Configuration{}
	if decodeError := registry.DecodeConfiguration(configuration, &settings); decodeError != nil {
		return nil, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}
	if len(settings.ScoresFile) == 0 {
		return nil, errors.New(missingScoresMessageConstant)
	}
	if len(settings.EvidenceFile) == 0 {
		return nil, errors.New(missingEvidenceMessageConstant)
	}
	if len(settings.ReportFile) == 0 {
		return nil, errors.New(missingReportMessageConstant)
	}

	rows, readError := scoring.ReadTable(settings.ScoresFile)
	if readError != nil {
		return nil, fmt.Errorf(readScoresTemplateConstant, readError)
	}
	evidenceByVariant, evidenceError := evidence.ReadEvidence(settings.EvidenceFile)
	if evidenceError != nil {
		return nil, fmt.Errorf(readEvidenceTemplateConstant, evidenceError)
	}

	format := resolveFormat(settings.Format)
	reportPath := adjustReportExtension(settings.ReportFile, format)
	topVariants := settings.TopVariants
	if topVariants <= 0 {
		topVariants = defaultTopVariantsConstant
	}

	runner.logger.Info(reportStartMessageConstant,
		zap.String(reportFileOutputKeyConstant, reportPath),
		zap.String(formatFieldConstant, format),
		zap.Int(variantCountFieldConstant, len(rows)),
	)

	content := reportContent{
		SampleIdentifier: settings.SampleIdentifier,
		Phenotype:        settings.Phenotype,
		GeneratedAt:      runner.clock(),
		Rows:             rows,
		Evidence:         evidenceByVariant,
		Statistics:       runner.loadStatistics(settings),
		TopVariants:      topVariants,
		Sections:         resolveSections(settings.IncludeSections),
	}

	document, renderError := renderReport(format, content)
	if renderError != nil {
		return nil, renderError
	}
	if writeError := writeReport(reportPath, document); writeError != nil {
		return nil, writeError
	}

	runner.logger.Info(reportDoneMessageConstant, zap.String(reportFileOutputKeyConstant, reportPath))

	return map[string]any{
		reportFileOutputKeyConstant:       reportPath,
		variantsReportedOutputKeyConstant: reportedVariantCount(len(rows), topVariants),
	}, nil
}

// loadStatistics reads the filter funnel counters. The report renders
// without them when the file is unavailable.
func (runner *Runner) loadStatistics(settings Configuration) *variantfilter.Statistics {
	if len(settings.StatisticsFile) == 0 {
		return nil
	}
	statistics, readError := variantfilter.ReadStatistics(settings.StatisticsFile)
	if readError != nil {
		runner.logger.Warn(statisticsUnavailableMessageConstant,
			zap.String(statsFileFieldConstant, settings.StatisticsFile),
			zap.Error(readError),
		)
		return nil
	}
	return &statistics
}

func renderReport(format string, content reportContent) (string, error) {
	if format == FormatHTML {
		return renderPageReport(content)
	}
	return renderMarkdownReport(content), nil
}

func resolveFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), FormatHTML) {
		return FormatHTML
	}
	return FormatMarkdown
}

// adjustReportExtension swaps the configured file extension when it does
// not match the selected format.
func adjustReportExtension(path string, format string) string {
	switch format {
	case FormatHTML:
		if strings.HasSuffix(path, markdownExtensionConstant) {
			return strings.TrimSuffix(path, markdownExtensionConstant) + htmlExtensionConstant
		}
	case FormatMarkdown:
		if strings.HasSuffix(path, htmlExtensionConstant) {
			return strings.TrimSuffix(path, htmlExtensionConstant) + markdownExtensionConstant
		}
	}
	return path
}

func resolveSections(names []string) map[string]bool {
	if len(names) == 0 {
		return map[string]bool{
			SectionSummary:         true,
			SectionTopVariants:     true,
			SectionEvidence:        true,
			SectionRecommendations: true,
		}
	}
	sections := make(map[string]bool, len(names))
	for _, name := range names {
		sections[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return sections
}

func writeReport(path string, document string) error {
	if directoryError := os.MkdirAll(filepath.Dir(path), reportDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(writeReportTemplateConstant, path, directoryError)
	}
	if writeError := os.WriteFile(path, []byte(document), reportFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeReportTemplateConstant, path, writeError)
	}
	return nil
}

func reportedVariantCount(totalRows int, topVariants int) int {
	if totalRows < topVariants {
		return totalRows
	}
	return topVariants
}

func impactCounts(rows []scoring.ScoreRow) (int, int, int) {
	highCount, moderateCount, lowCount := 0, 0, 0
	for _, row := range rows {
		switch row.ImpactLevel {
		case scoring.ImpactLevelHigh:
			highCount++
		case scoring.ImpactLevelModerate:
			moderateCount++
		case scoring.ImpactLevelLow:
			lowCount++
		}
	}
	return highCount, moderateCount, lowCount
}

// topScoredRows returns the highest scoring rows in descending score
// order, ties kept in table order.
func topScoredRows(rows []scoring.ScoreRow, limit int) []scoring.ScoreRow {
	sortedRows := make([]scoring.ScoreRow, len(rows))
	copy(sortedRows, rows)
	sort.SliceStable(sortedRows, func(leftIndex int, rightIndex int) bool {
		return sortedRows[leftIndex].FinalScore > sortedRows[rightIndex].FinalScore
	})
	if len(sortedRows) > limit {
		sortedRows = sortedRows[:limit]
	}
	return sortedRows
}
