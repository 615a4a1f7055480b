package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/genos"
	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/tasks/seqcontext"
)

// TaskType identifies the Genos embedding task body.
const TaskType = "genos_embedding"

const (
	embeddingsFileOutputKeyConstant     = "embeddings_file"
	embeddingCountOutputKeyConstant     = "embedding_count"
	failedCountOutputKeyConstant        = "failed_count"
	variantIdentifiersOutputKeyConstant = "variant_ids"
	decodeConfigurationTemplateConstant = "decode embedding configuration: %w"
	readContextsTemplateConstant        = "read contexts from %s: %w"
	writeRecordsTemplateConstant        = "write embeddings to %s: %w"
	contextsRequiredMessageConstant     = "embedding requires a contexts_file path"
	embeddingsRequiredMessageConstant   = "embedding requires an embeddings_file path"
	embedStartMessageConstant           = "Embedding sequence contexts"
	embedCompleteMessageConstant        = "Sequence embedding complete"
	embedFailedMessageConstant          = "Skipping variant without embeddings"
	mockEmbedderMessageConstant         = "Embedding server not configured, generating mock embeddings"
	modelLogFieldNameConstant           = "model_name"
	poolingLogFieldNameConstant         = "pooling_method"
	variantLogFieldNameConstant         = "variant_id"
	contextCountLogFieldNameConstant    = "context_count"
	embeddedCountLogFieldNameConstant   = "embedded_count"
	failedCountLogFieldNameConstant     = "failed_count"
)

// Configuration carries the resolved task settings.
type Configuration struct {
	ContextsFile   string `mapstructure:"contexts_file"`
	EmbeddingsFile string `mapstructure:"embeddings_file"`
	ModelName      string `mapstructure:"model_name"`
	PoolingMethod  string `mapstructure:"pooling_method"`
}

// Statistics counts embedding attempts per variant context.
type Statistics struct {
	TotalSequences       int `json:"total_sequences"`
	SuccessfulEmbeddings int `json:"successful_embeddings"`
	FailedEmbeddings     int `json:"failed_embeddings"`
}

// Dependencies configure a Runner.
type Dependencies struct {
	Logger   *zap.Logger
	Embedder genos.Embedder
}

// Runner embeds each context's reference and alternate sequences and
// records the distance metrics between the resulting vectors.
type Runner struct {
	logger   *zap.Logger
	embedder genos.Embedder
}

// NewRunner constructs a Runner, substituting a no-op logger when none is
// provided. A nil embedder selects deterministic mock embeddings.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, embedder: dependencies.Embedder}
}

// TaskContract declares the outputs the task guarantees on success.
func TaskContract() registry.Contract {
	return registry.Contract{
		TaskType: TaskType,
		OutputKeys: []string{
			embeddingsFileOutputKeyConstant,
			embeddingCountOutputKeyConstant,
			variantIdentifiersOutputKeyConstant,
		},
		PrimaryEntityKey: variantIdentifiersOutputKeyConstant,
	}
}

// Invoke embeds every context in the configured file. Variants whose
// sequences cannot be embedded are dropped with a warning so one server
// hiccup does not fail the whole stage.
func (runner *Runner) Invoke(executionContext context.Context, configuration map[string]any, environment registry.RunEnvironment) (map[string]any, error) {
	var settings Configuration
	if decodeError := registry.DecodeConfiguration(configuration, &settings); decodeError != nil {
		return nil, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}
	if len(settings.ContextsFile) == 0 {
		return nil, errors.New(contextsRequiredMessageConstant)
	}
	if len(settings.EmbeddingsFile) == 0 {
		return nil, errors.New(embeddingsRequiredMessageConstant)
	}

	embedder := runner.embedder
	if embedder == nil {
		runner.logger.Warn(mockEmbedderMessageConstant)
		embedder = genos.MockEmbedder{}
	}

	contexts, readError := seqcontext.ReadContexts(settings.ContextsFile)
	if readError != nil {
		return nil, fmt.Errorf(readContextsTemplateConstant, settings.ContextsFile, readError)
	}

	runner.logger.Info(
		embedStartMessageConstant,
		zap.Int(contextCountLogFieldNameConstant, len(contexts)),
		zap.String(modelLogFieldNameConstant, settings.ModelName),
		zap.String(poolingLogFieldNameConstant, settings.PoolingMethod),
	)

	statistics := Statistics{TotalSequences: len(contexts)}
	records := make([]VariantEmbeddingRecord, 0, len(contexts))
	variantIdentifiers := make([]string, 0, len(contexts))
	for _, contextRecord := range contexts {
		referenceEmbedding, referenceError := embedder.Embed(executionContext, contextRecord.ReferenceSequence)
		if referenceError != nil {
			statistics.FailedEmbeddings++
			runner.logger.Warn(
				embedFailedMessageConstant,
				zap.String(variantLogFieldNameConstant, contextRecord.VariantIdentifier),
				zap.Error(referenceError),
			)
			continue
		}
		alternateEmbedding, alternateError := embedder.Embed(executionContext, contextRecord.AlternateSequence)
		if alternateError != nil {
			statistics.FailedEmbeddings++
			runner.logger.Warn(
				embedFailedMessageConstant,
				zap.String(variantLogFieldNameConstant, contextRecord.VariantIdentifier),
				zap.Error(alternateError),
			)
			continue
		}

		records = append(records, VariantEmbeddingRecord{
			VariantIdentifier:  contextRecord.VariantIdentifier,
			Chromosome:         contextRecord.Chromosome,
			Position:           contextRecord.Position,
			Reference:          contextRecord.Reference,
			Alternate:          contextRecord.Alternate,
			ReferenceEmbedding: referenceEmbedding,
			AlternateEmbedding: alternateEmbedding,
			EffectScores:       genos.ComputeEffectScores(referenceEmbedding, alternateEmbedding),
		})
		variantIdentifiers = append(variantIdentifiers, contextRecord.VariantIdentifier)
		statistics.SuccessfulEmbeddings++
	}

	if writeError := WriteRecords(settings.EmbeddingsFile, records); writeError != nil {
		return nil, fmt.Errorf(writeRecordsTemplateConstant, settings.EmbeddingsFile, writeError)
	}

	runner.logger.Info(
		embedCompleteMessageConstant,
		zap.Int(embeddedCountLogFieldNameConstant, statistics.SuccessfulEmbeddings),
		zap.Int(failedCountLogFieldNameConstant, statistics.FailedEmbeddings),
	)

	return map[string]any{
		embeddingsFileOutputKeyConstant:     settings.EmbeddingsFile,
		embeddingCountOutputKeyConstant:     len(records),
		failedCountOutputKeyConstant:        statistics.FailedEmbeddings,
		variantIdentifiersOutputKeyConstant: variantIdentifiers,
	}, nil
}
