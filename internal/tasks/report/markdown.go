package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tyemirov/genopipe/internal/tasks/evidence"
)

// renderMarkdownReport assembles the Markdown report, honoring the
// configured section selection.
func renderMarkdownReport(content reportContent) string {
	lines := []string{
		"# Genomic Variant Analysis Report",
		"",
	}
	if len(content.SampleIdentifier) > 0 {
		lines = append(lines, fmt.Sprintf("**Sample**: %s", content.SampleIdentifier))
	}
	if len(content.Phenotype) > 0 {
		lines = append(lines, fmt.Sprintf("**Phenotype**: %s", content.Phenotype))
	}
	lines = append(lines, fmt.Sprintf("**Generated**: %s", content.GeneratedAt.Format(timestampLayoutConstant)), "")

	if content.Sections[SectionSummary] {
		lines = append(lines, summaryLines(content)...)
	}
	if content.Sections[SectionTopVariants] {
		lines = append(lines, topVariantLines(content)...)
	}
	if content.Sections[SectionEvidence] {
		lines = append(lines, evidenceSummaryLines(content)...)
	}
	if content.Sections[SectionRecommendations] {
		lines = append(lines, recommendationLines(content)...)
	}

	return strings.Join(lines, "\n")
}

func summaryLines(content reportContent) []string {
	highCount, moderateCount, lowCount := impactCounts(content.Rows)
	totalCount := len(content.Rows)

	lines := []string{
		"## Analysis Summary",
		"",
		fmt.Sprintf("- **Total variants**: %d", totalCount),
		fmt.Sprintf("- **High impact**: %d (%s)", highCount, percentageLabel(highCount, totalCount)),
		fmt.Sprintf("- **Moderate impact**: %d (%s)", moderateCount, percentageLabel(moderateCount, totalCount)),
		fmt.Sprintf("- **Low impact**: %d (%s)", lowCount, percentageLabel(lowCount, totalCount)),
	}
	if content.Statistics != nil {
		lines = append(lines, fmt.Sprintf(
			"- **Filter funnel**: %d input, %d passed quality, %d passed frequency, %d final",
			content.Statistics.TotalVariants,
			content.Statistics.PassedQuality,
			content.Statistics.PassedFrequency,
			content.Statistics.FinalVariants,
		))
	}
	return append(lines, "")
}

func percentageLabel(count int, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}

func topVariantLines(content reportContent) []string {
	lines := []string{
		fmt.Sprintf("## Top %d High-Impact Variants", content.TopVariants),
		"",
		"| Rank | Variant ID | Position | Ref→Alt | Score | Impact | Evidence Sources |",
		"|------|------------|----------|---------|-------|--------|------------------|",
	}
	for rowIndex, row := range topScoredRows(content.Rows, content.TopVariants) {
		sourceNames := leadingSourceNames(content.Evidence[row.VariantIdentifier].Sources, 3)
		lines = append(lines, fmt.Sprintf(
			"| %d | %s | %s:%d | %s→%s | %.3f | %s | %s |",
			rowIndex+1,
			row.VariantIdentifier,
			row.Chromosome,
			row.Position,
			row.Reference,
			row.Alternate,
			row.FinalScore,
			row.ImpactLevel,
			strings.Join(sourceNames, ", "),
		))
	}
	return append(lines, "")
}

func leadingSourceNames(sources []evidence.Source, limit int) []string {
	names := make([]string, 0, limit)
	for _, source := range sources {
		if len(names) == limit {
			break
		}
		names = append(names, source.Name)
	}
	return names
}

func evidenceSummaryLines(content reportContent) []string {
	counts := map[string]int{}
	for _, variantEvidence := range content.Evidence {
		for _, source := range variantEvidence.Sources {
			counts[source.Name]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(leftIndex int, rightIndex int) bool {
		if counts[names[leftIndex]] != counts[names[rightIndex]] {
			return counts[names[leftIndex]] > counts[names[rightIndex]]
		}
		return names[leftIndex] < names[rightIndex]
	})

	lines := []string{
		"## Evidence Summary",
		"",
		"**Evidence source counts**:",
	}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: %d variants", name, counts[name]))
	}
	return append(lines, "")
}

func recommendationLines(content reportContent) []string {
	highCount, _, _ := impactCounts(content.Rows)

	lines := []string{
		"## Recommendations",
		"",
	}
	if highCount == 0 {
		return append(lines, "No high-impact variants were found; no immediate follow-up is required.", "")
	}
	return append(lines,
		"### High-Impact Variants",
		fmt.Sprintf("Found %d high-impact variants. Suggested follow-up:", highCount),
		"1. Confirm each call with Sanger sequencing",
		"2. Review the supporting evidence with a genetic counselor",
		"",
	)
}
