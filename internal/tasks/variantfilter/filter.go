// Package variantfilter drops variants that fail quality, population
// frequency, or consequence gates and records how many survived each one.
package variantfilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/vcf"
)

// TaskType identifies the variant filtering task body.
const TaskType = "variant_filter"

const (
	filteredVCFOutputKeyConstant        = "filtered_vcf"
	statsFileOutputKeyConstant          = "stats_file"
	variantCountOutputKeyConstant       = "variant_count"
	variantIdentifiersOutputKeyConstant = "variant_ids"
	consequenceInfoKeyConstant          = "CSQ"
	defaultConsequenceConstant          = "missense_variant"
	statsFilePermissionsConstant        = 0o644
	statsDirectoryPermissionsConstant   = 0o755
	decodeConfigurationTemplateConstant = "decode variant filter configuration: %w"
	readVariantsTemplateConstant        = "read variants from %s: %w"
	writeVariantsTemplateConstant       = "write filtered variants to %s: %w"
	writeStatsTemplateConstant          = "write filter statistics to %s: %w"
	readStatsTemplateConstant           = "read filter statistics from %s: %w"
	inputRequiredMessageConstant        = "variant filter requires an input_vcf path"
	outputRequiredMessageConstant       = "variant filter requires an output_vcf path"
	statsRequiredMessageConstant        = "variant filter requires a stats_file path"
	filterStartMessageConstant          = "Filtering variants"
	filterCompleteMessageConstant       = "Variant filtering complete"
	inputLogFieldNameConstant           = "input_vcf"
	totalLogFieldNameConstant           = "total_variants"
	keptLogFieldNameConstant            = "final_variants"
)

// Configuration carries the resolved task settings.
type Configuration struct {
	InputVCF               string   `mapstructure:"input_vcf"`
	OutputVCF              string   `mapstructure:"output_vcf"`
	StatsFile              string   `mapstructure:"stats_file"`
	MinimumQuality         float64  `mapstructure:"min_quality"`
	MaximumAlleleFrequency float64  `mapstructure:"max_allele_frequency"`
	Consequences           []string `mapstructure:"consequences"`
}

// Statistics counts how many variants survived each filtering gate.
type Statistics struct {
	TotalVariants     int `json:"total_variants"`
	PassedQuality     int `json:"passed_quality"`
	PassedFrequency   int `json:"passed_frequency"`
	PassedConsequence int `json:"passed_consequence"`
	FinalVariants     int `json:"final_variants"`
}

// Dependencies configure a Runner.
type Dependencies struct {
	Logger *zap.Logger
}

// Runner filters a variants file and writes the survivors plus gate
// statistics into the run directory.
type Runner struct {
	logger *zap.Logger
}

// NewRunner constructs a Runner, substituting a no-op logger when none is
// provided.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// TaskContract declares the outputs the task guarantees on success.
func TaskContract() registry.Contract {
	return registry.Contract{
		TaskType: TaskType,
		OutputKeys: []string{
			filteredVCFOutputKeyConstant,
			statsFileOutputKeyConstant,
			variantCountOutputKeyConstant,
			variantIdentifiersOutputKeyConstant,
		},
		PrimaryEntityKey:  variantIdentifiersOutputKeyConstant,
		IntentionalFilter: true,
	}
}

// Invoke runs the filter over the configured input file.
func (runner *Runner) Invoke(executionContext context.Context, configuration map[string]any, environment registry.RunEnvironment) (map[string]any, error) {
	var settings Configuration
	if decodeError := registry.DecodeConfiguration(configuration, &settings); decodeError != nil {
		return nil, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}
	if len(settings.InputVCF) == 0 {
		return nil, errors.New(inputRequiredMessageConstant)
	}
	if len(settings.OutputVCF) == 0 {
		return nil, errors.New(outputRequiredMessageConstant)
	}
	if len(settings.StatsFile) == 0 {
		return nil, errors.New(statsRequiredMessageConstant)
	}

	runner.logger.Info(filterStartMessageConstant, zap.String(inputLogFieldNameConstant, settings.InputVCF))

	records, readError := vcf.ReadFile(settings.InputVCF)
	if readError != nil {
		return nil, fmt.Errorf(readVariantsTemplateConstant, settings.InputVCF, readError)
	}

	keptRecords, statistics := applyFilters(records, settings)

	if writeError := vcf.WriteFile(settings.OutputVCF, keptRecords); writeError != nil {
		return nil, fmt.Errorf(writeVariantsTemplateConstant, settings.OutputVCF, writeError)
	}
	if statsError := WriteStatistics(settings.StatsFile, statistics); statsError != nil {
		return nil, fmt.Errorf(writeStatsTemplateConstant, settings.StatsFile, statsError)
	}

	variantIdentifiers := make([]string, 0, len(keptRecords))
	for _, record := range keptRecords {
		variantIdentifiers = append(variantIdentifiers, record.DisplayIdentifier())
	}

	runner.logger.Info(
		filterCompleteMessageConstant,
		zap.Int(totalLogFieldNameConstant, statistics.TotalVariants),
		zap.Int(keptLogFieldNameConstant, statistics.FinalVariants),
	)

	return map[string]any{
		filteredVCFOutputKeyConstant:        settings.OutputVCF,
		statsFileOutputKeyConstant:          settings.StatsFile,
		variantCountOutputKeyConstant:       len(keptRecords),
		variantIdentifiersOutputKeyConstant: variantIdentifiers,
	}, nil
}

// applyFilters walks the gates in order so the statistics form a funnel:
// each counter includes only variants that passed every earlier gate.
func applyFilters(records []vcf.Record, settings Configuration) ([]vcf.Record, Statistics) {
	statistics := Statistics{}
	keptRecords := make([]vcf.Record, 0, len(records))

	for _, record := range records {
		statistics.TotalVariants++

		if record.Quality < settings.MinimumQuality {
			continue
		}
		statistics.PassedQuality++

		if record.Info.MaximumAlleleFrequency() > settings.MaximumAlleleFrequency {
			continue
		}
		statistics.PassedFrequency++

		if !matchesConsequence(record.Info, settings.Consequences) {
			continue
		}
		statistics.PassedConsequence++

		keptRecords = append(keptRecords, record)
	}

	statistics.FinalVariants = len(keptRecords)
	return keptRecords, statistics
}

// matchesConsequence reports whether the record's consequence annotation
// contains any of the configured terms. Records without the annotation are
// treated as missense candidates.
func matchesConsequence(info vcf.Info, consequenceTerms []string) bool {
	if len(consequenceTerms) == 0 {
		return true
	}
	annotation, found := info.Value(consequenceInfoKeyConstant)
	if !found {
		annotation = defaultConsequenceConstant
	}
	for _, term := range consequenceTerms {
		if strings.Contains(annotation, term) {
			return true
		}
	}
	return false
}

// WriteStatistics persists filter statistics as an indented JSON document.
func WriteStatistics(path string, statistics Statistics) error {
	encodedStatistics, encodeError := json.MarshalIndent(statistics, "", "  ")
	if encodeError != nil {
		return encodeError
	}
	if directoryError := os.MkdirAll(filepath.Dir(path), statsDirectoryPermissionsConstant); directoryError != nil {
		return directoryError
	}
	return os.WriteFile(path, encodedStatistics, statsFilePermissionsConstant)
}

// ReadStatistics loads a previously written statistics document.
func ReadStatistics(path string) (Statistics, error) {
	encodedStatistics, readError := os.ReadFile(path)
	if readError != nil {
		return Statistics{}, fmt.Errorf(readStatsTemplateConstant, path, readError)
	}
	var statistics Statistics
	if decodeError := json.Unmarshal(encodedStatistics, &statistics); decodeError != nil {
		return Statistics{}, fmt.Errorf(readStatsTemplateConstant, path, decodeError)
	}
	return statistics, nil
}
