// Package scoring combines embedding distance metrics into per-variant
// impact scores, optionally delegating the pathogenicity call to a
// language model.
package scoring

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Impact levels assigned to scored variants.
const (
	ImpactLevelHigh     = "HIGH"
	ImpactLevelModerate = "MODERATE"
	ImpactLevelLow      = "LOW"
)

const (
	tableColumnSeparatorConstant      = "\t"
	tableFilePermissionsConstant      = 0o644
	tableDirectoryPermissionsConstant = 0o755
	createTableTemplateConstant       = "create scores file %s: %w"
	openTableTemplateConstant         = "open scores file %s: %w"
	tableHeaderTemplateConstant       = "scores file %s has no header"
	missingColumnTemplateConstant     = "scores file %s is missing column %s"
	tableRowTemplateConstant          = "scores file %s line %d: %w"
)

var tableColumnNames = []string{
	"variant_id",
	"chrom",
	"pos",
	"ref",
	"alt",
	"cosine_similarity",
	"euclidean_distance",
	"diff_magnitude",
	"raw_impact_score",
	"combined_score",
	"final_score",
	"impact_level",
	"explanation",
}

// ScoreRow is one scored variant in the scores table. The combined score
// is the unclamped weighted sum; the final score is clamped to [0, 1].
type ScoreRow struct {
	VariantIdentifier   string
	Chromosome          string
	Position            int
	Reference           string
	Alternate           string
	CosineSimilarity    float64
	EuclideanDistance   float64
	DifferenceMagnitude float64
	RawImpactScore      float64
	CombinedScore       float64
	FinalScore          float64
	ImpactLevel         string
	Explanation         string
}

func (row ScoreRow) columns() []string {
	return []string{
		row.VariantIdentifier,
		row.Chromosome,
		strconv.Itoa(row.Position),
		row.Reference,
		row.Alternate,
		formatTableFloat(row.CosineSimilarity),
		formatTableFloat(row.EuclideanDistance),
		formatTableFloat(row.DifferenceMagnitude),
		formatTableFloat(row.RawImpactScore),
		formatTableFloat(row.CombinedScore),
		formatTableFloat(row.FinalScore),
		row.ImpactLevel,
		sanitizeTableText(row.Explanation),
	}
}

func formatTableFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// sanitizeTableText flattens separators so free text cannot break the
// tab-separated layout.
func sanitizeTableText(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", " ")
}

// WriteTable writes the scores table with a header row.
func WriteTable(path string, rows []ScoreRow) error {
	if directoryError := os.MkdirAll(filepath.Dir(path), tableDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createTableTemplateConstant, path, directoryError)
	}
	tableFile, createError := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, tableFilePermissionsConstant)
	if createError != nil {
		return fmt.Errorf(createTableTemplateConstant, path, createError)
	}
	defer tableFile.Close()

	destination := bufio.NewWriter(tableFile)
	if _, headerError := fmt.Fprintln(destination, strings.Join(tableColumnNames, tableColumnSeparatorConstant)); headerError != nil {
		return fmt.Errorf(createTableTemplateConstant, path, headerError)
	}
	for _, row := range rows {
		if _, rowError := fmt.Fprintln(destination, strings.Join(row.columns(), tableColumnSeparatorConstant)); rowError != nil {
			return fmt.Errorf(createTableTemplateConstant, path, rowError)
		}
	}
	if flushError := destination.Flush(); flushError != nil {
		return fmt.Errorf(createTableTemplateConstant, path, flushError)
	}
	return nil
}

type tableColumnIndex map[string]int

func (index tableColumnIndex) text(fields []string, column string) string {
	position, found := index[column]
	if !found || position >= len(fields) {
		return ""
	}
	return fields[position]
}

func (index tableColumnIndex) number(fields []string, column string) (float64, error) {
	text := index.text(fields, column)
	if len(text) == 0 {
		return 0, nil
	}
	return strconv.ParseFloat(text, 64)
}

// ReadTable loads a scores table, locating columns by header name so the
// column order never matters.
func ReadTable(path string) ([]ScoreRow, error) {
	tableFile, openError := os.Open(path)
	if openError != nil {
		return nil, fmt.Errorf(openTableTemplateConstant, path, openError)
	}
	defer tableFile.Close()

	source := bufio.NewReader(tableFile)
	headerLine, headerError := source.ReadString('\n')
	if len(strings.TrimSpace(headerLine)) == 0 {
		return nil, fmt.Errorf(tableHeaderTemplateConstant, path)
	}
	if headerError != nil && !errors.Is(headerError, io.EOF) {
		return nil, fmt.Errorf(openTableTemplateConstant, path, headerError)
	}

	columnIndex := tableColumnIndex{}
	for position, column := range strings.Split(strings.TrimRight(headerLine, "\r\n"), tableColumnSeparatorConstant) {
		columnIndex[column] = position
	}
	for _, requiredColumn := range []string{"variant_id", "final_score", "impact_level"} {
		if _, found := columnIndex[requiredColumn]; !found {
			return nil, fmt.Errorf(missingColumnTemplateConstant, path, requiredColumn)
		}
	}

	rows := []ScoreRow{}
	lineNumber := 1
	for {
		line, readError := source.ReadString('\n')
		if len(strings.TrimSpace(line)) > 0 {
			lineNumber++
			fields := strings.Split(strings.TrimRight(line, "\r\n"), tableColumnSeparatorConstant)
			row, parseError := parseTableRow(columnIndex, fields)
			if parseError != nil {
				return nil, fmt.Errorf(tableRowTemplateConstant, path, lineNumber, parseError)
			}
			rows = append(rows, row)
		}
		if errors.Is(readError, io.EOF) {
			return rows, nil
		}
		if readError != nil {
			return nil, fmt.Errorf(openTableTemplateConstant, path, readError)
		}
	}
}

func parseTableRow(columnIndex tableColumnIndex, fields []string) (ScoreRow, error) {
	row := ScoreRow{
		VariantIdentifier: columnIndex.text(fields, "variant_id"),
		Chromosome:        columnIndex.text(fields, "chrom"),
		Reference:         columnIndex.text(fields, "ref"),
		Alternate:         columnIndex.text(fields, "alt"),
		ImpactLevel:       columnIndex.text(fields, "impact_level"),
		Explanation:       columnIndex.text(fields, "explanation"),
	}

	positionText := columnIndex.text(fields, "pos")
	if len(positionText) > 0 {
		position, positionError := strconv.Atoi(positionText)
		if positionError != nil {
			return ScoreRow{}, fmt.Errorf("column pos: %w", positionError)
		}
		row.Position = position
	}

	numericColumns := []struct {
		name   string
		target *float64
	}{
		{name: "cosine_similarity", target: &row.CosineSimilarity},
		{name: "euclidean_distance", target: &row.EuclideanDistance},
		{name: "diff_magnitude", target: &row.DifferenceMagnitude},
		{name: "raw_impact_score", target: &row.RawImpactScore},
		{name: "combined_score", target: &row.CombinedScore},
		{name: "final_score", target: &row.FinalScore},
	}
	for _, numericColumn := range numericColumns {
		value, valueError := columnIndex.number(fields, numericColumn.name)
		if valueError != nil {
			return ScoreRow{}, fmt.Errorf("column %s: %w", numericColumn.name, valueError)
		}
		*numericColumn.target = value
	}

	return row, nil
}
