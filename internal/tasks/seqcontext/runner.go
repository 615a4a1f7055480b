package seqcontext

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/fasta"
	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/vcf"
)

// TaskType identifies the sequence context extraction task body.
const TaskType = "sequence_context"

const (
	contextsFileOutputKeyConstant       = "contexts_file"
	contextCountOutputKeyConstant       = "context_count"
	variantIdentifiersOutputKeyConstant = "variant_ids"
	decodeConfigurationTemplateConstant = "decode sequence context configuration: %w"
	readVariantsTemplateConstant        = "read variants from %s: %w"
	openReferenceTemplateConstant       = "open reference genome %s: %w"
	writeContextsTemplateConstant       = "write contexts to %s: %w"
	variantsRequiredMessageConstant     = "sequence context requires a variants_file path"
	contextsRequiredMessageConstant     = "sequence context requires a contexts_file path"
	windowSizeMessageConstant           = "sequence context requires a positive window_size"
	extractStartMessageConstant         = "Extracting sequence contexts"
	extractCompleteMessageConstant      = "Sequence context extraction complete"
	windowFailedMessageConstant         = "Skipping variant without a sequence window"
	mockReferenceMessageConstant        = "Reference genome unavailable, generating mock sequences"
	referenceLogFieldNameConstant       = "reference_fasta"
	variantLogFieldNameConstant         = "variant_id"
	variantCountLogFieldNameConstant    = "variant_count"
	contextCountLogFieldNameConstant    = "context_count"
)

// Configuration carries the resolved task settings.
type Configuration struct {
	VariantsFile   string `mapstructure:"variants_file"`
	ReferenceFASTA string `mapstructure:"reference_fasta"`
	WindowSize     int    `mapstructure:"window_size"`
	ContextsFile   string `mapstructure:"contexts_file"`
}

// SourceOpener yields a window source for the configured reference genome
// together with an optional close function.
type SourceOpener func(referencePath string) (fasta.WindowSource, func() error, error)

// Dependencies configure a Runner.
type Dependencies struct {
	Logger     *zap.Logger
	OpenSource SourceOpener
}

// Runner extracts variant-centered sequence windows from the reference
// genome, falling back to deterministic mock sequences when the genome
// file is absent.
type Runner struct {
	logger     *zap.Logger
	openSource SourceOpener
}

// NewRunner constructs a Runner, filling defaults for missing dependencies.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := &Runner{logger: logger, openSource: dependencies.OpenSource}
	if runner.openSource == nil {
		runner.openSource = runner.defaultSourceOpener
	}
	return runner
}

// TaskContract declares the outputs the task guarantees on success.
func TaskContract() registry.Contract {
	return registry.Contract{
		TaskType: TaskType,
		OutputKeys: []string{
			contextsFileOutputKeyConstant,
			contextCountOutputKeyConstant,
			variantIdentifiersOutputKeyConstant,
		},
		PrimaryEntityKey: variantIdentifiersOutputKeyConstant,
	}
}

// Invoke extracts a window for every variant in the configured file.
// Variants whose window cannot be extracted are skipped with a warning
// rather than failing the task.
func (runner *Runner) Invoke(executionContext context.Context, configuration map[string]any, environment registry.RunEnvironment) (map[string]any, error) {
	var settings Configuration
	if decodeError := registry.DecodeConfiguration(configuration, &settings); decodeError != nil {
		return nil, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}
	if len(settings.VariantsFile) == 0 {
		return nil, errors.New(variantsRequiredMessageConstant)
	}
	if len(settings.ContextsFile) == 0 {
		return nil, errors.New(contextsRequiredMessageConstant)
	}
	if settings.WindowSize <= 0 {
		return nil, errors.New(windowSizeMessageConstant)
	}

	records, readError := vcf.ReadFile(settings.VariantsFile)
	if readError != nil {
		return nil, fmt.Errorf(readVariantsTemplateConstant, settings.VariantsFile, readError)
	}

	windowSource, closeSource, openError := runner.openSource(settings.ReferenceFASTA)
	if openError != nil {
		return nil, fmt.Errorf(openReferenceTemplateConstant, settings.ReferenceFASTA, openError)
	}
	if closeSource != nil {
		defer closeSource()
	}

	runner.logger.Info(
		extractStartMessageConstant,
		zap.String(referenceLogFieldNameConstant, settings.ReferenceFASTA),
		zap.Int(variantCountLogFieldNameConstant, len(records)),
	)

	contextRecords := make([]ContextRecord, 0, len(records))
	variantIdentifiers := make([]string, 0, len(records))
	for _, record := range records {
		variantIdentifier := record.DisplayIdentifier()
		window, windowError := windowSource.Window(record.Chromosome, record.Position, record.Reference, record.Alternate, settings.WindowSize)
		if windowError != nil {
			runner.logger.Warn(
				windowFailedMessageConstant,
				zap.String(variantLogFieldNameConstant, variantIdentifier),
				zap.Error(windowError),
			)
			continue
		}

		contextRecords = append(contextRecords, ContextRecord{
			VariantIdentifier: variantIdentifier,
			Chromosome:        record.Chromosome,
			Position:          record.Position,
			Reference:         record.Reference,
			Alternate:         record.Alternate,
			Info:              record.Info.String(),
			ReferenceSequence: window.ReferenceSequence,
			AlternateSequence: window.AlternateSequence,
			WindowSize:        settings.WindowSize,
		})
		variantIdentifiers = append(variantIdentifiers, variantIdentifier)
	}

	if writeError := WriteContexts(settings.ContextsFile, contextRecords); writeError != nil {
		return nil, fmt.Errorf(writeContextsTemplateConstant, settings.ContextsFile, writeError)
	}

	runner.logger.Info(
		extractCompleteMessageConstant,
		zap.Int(contextCountLogFieldNameConstant, len(contextRecords)),
	)

	return map[string]any{
		contextsFileOutputKeyConstant:       settings.ContextsFile,
		contextCountOutputKeyConstant:       len(contextRecords),
		variantIdentifiersOutputKeyConstant: variantIdentifiers,
	}, nil
}

// defaultSourceOpener opens the indexed reference genome when the file
// exists and otherwise falls back to the deterministic mock source.
func (runner *Runner) defaultSourceOpener(referencePath string) (fasta.WindowSource, func() error, error) {
	if len(referencePath) > 0 {
		if _, statError := os.Stat(referencePath); statError == nil {
			extractor, openError := fasta.Open(referencePath)
			if openError != nil {
				return nil, nil, openError
			}
			return extractor, extractor.Close, nil
		}
	}
	runner.logger.Warn(mockReferenceMessageConstant, zap.String(referenceLogFieldNameConstant, referencePath))
	return fasta.MockSource{}, nil, nil
}
