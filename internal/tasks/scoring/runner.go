package scoring

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/tasks/embedding"
	"github.com/tyemirov/genopipe/internal/tasks/seqcontext"
	"github.com/tyemirov/utils/llm"
)

// TaskType identifies the variant scoring task.
const TaskType = "scoring"

const (
	scoresFileOutputKeyConstant         = "scores_file"
	scoredCountOutputKeyConstant        = "scored_count"
	variantIdentifiersOutputKeyConstant = "variant_ids"
	maxScoreOutputKeyConstant           = "max_score"
	meanScoreOutputKeyConstant          = "mean_score"

	defaultHighImpactThresholdConstant     = 0.7
	defaultModerateImpactThresholdConstant = 0.4

	decodeConfigurationTemplateConstant = "decode scoring configuration: %w"
	readEmbeddingsTemplateConstant      = "read embeddings: %w"
	writeScoresTemplateConstant         = "write scores: %w"
	missingEmbeddingsMessageConstant    = "scoring requires an embeddings_file path"
	missingScoresMessageConstant        = "scoring requires a scores_file path"

	scoringStartMessageConstant        = "Scoring variants"
	scoringDoneMessageConstant         = "Variant scoring complete"
	contextsUnavailableMessageConstant = "Context sequences unavailable for scoring prompts"

	variantCountFieldConstant  = "variant_count"
	scoringMethodFieldConstant = "method"
	contextsFileFieldConstant  = "contexts_file"

	heuristicMethodNameConstant = "heuristic"
	languageMethodNameConstant  = "llm"
)

// Configuration drives one scoring run.
type Configuration struct {
	EmbeddingsFile          string  `mapstructure:"embeddings_file"`
	ContextsFile            string  `mapstructure:"contexts_file"`
	ScoresFile              string  `mapstructure:"scores_file"`
	CosineWeight            float64 `mapstructure:"cosine_weight"`
	EuclideanWeight         float64 `mapstructure:"euclidean_weight"`
	DifferenceWeight        float64 `mapstructure:"difference_weight"`
	HighImpactThreshold     float64 `mapstructure:"high_impact_threshold"`
	ModerateImpactThreshold float64 `mapstructure:"moderate_impact_threshold"`
}

// Dependencies configures a scoring Runner. A nil ChatClient selects the
// heuristic scoring path.
type Dependencies struct {
	Logger     *zap.Logger
	ChatClient llm.ChatClient
}

// Runner scores embedded variants.
type Runner struct {
	logger     *zap.Logger
	chatClient llm.ChatClient
}

// NewRunner builds a Runner, substituting a no-op logger when none is
// supplied.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, chatClient: dependencies.ChatClient}
}

// TaskContract describes the outputs every scoring run guarantees.
func TaskContract() registry.Contract {
	return registry.Contract{
		TaskType: TaskType,
		OutputKeys: []string{
			scoresFileOutputKeyConstant,
			scoredCountOutputKeyConstant,
			variantIdentifiersOutputKeyConstant,
			maxScoreOutputKeyConstant,
			meanScoreOutputKeyConstant,
		},
		NumericRanges: map[string]registry.ValueRange{
			maxScoreOutputKeyConstant:  {Minimum: 0, Maximum: 1},
			meanScoreOutputKeyConstant: {Minimum: 0, Maximum: 1},
		},
		PrimaryEntityKey: variantIdentifiersOutputKeyConstant,
	}
}

type impactThresholds struct {
	High     float64
	Moderate float64
}

// Invoke scores every embedded variant and writes the scores table. With a
// chat client configured, the pathogenicity call for each variant is
// delegated to the language model and the distance metrics are kept as
// supporting columns.
func (runner *Runner) Invoke(executionContext context.Context, configuration map[string]any, environment registry.RunEnvironment) (map[string]any, error) {
	settings := Configuration{}
	if decodeError := registry.DecodeConfiguration(configuration, &settings); decodeError != nil {
		return nil, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}
	if len(settings.EmbeddingsFile) == 0 {
		return nil, errors.New(missingEmbeddingsMessageConstant)
	}
	if len(settings.ScoresFile) == 0 {
		return nil, errors.New(missingScoresMessageConstant)
	}

	records, readError := embedding.ReadRecords(settings.EmbeddingsFile)
	if readError != nil {
		return nil, fmt.Errorf(readEmbeddingsTemplateConstant, readError)
	}

	method := heuristicMethodNameConstant
	if runner.chatClient != nil {
		method = languageMethodNameConstant
	}
	runner.logger.Info(scoringStartMessageConstant,
		zap.Int(variantCountFieldConstant, len(records)),
		zap.String(scoringMethodFieldConstant, method),
	)

	thresholds := resolveThresholds(settings)
	contexts := runner.loadPromptContexts(settings)

	rows := make([]ScoreRow, 0, len(records))
	variantIdentifiers := make([]string, 0, len(records))
	for _, record := range records {
		row := heuristicScoreRow(record, settings, thresholds)
		if runner.chatClient != nil {
			runner.applyChatAssessment(executionContext, &row, contexts[record.VariantIdentifier])
		}
		rows = append(rows, row)
		variantIdentifiers = append(variantIdentifiers, row.VariantIdentifier)
	}

	if writeError := WriteTable(settings.ScoresFile, rows); writeError != nil {
		return nil, fmt.Errorf(writeScoresTemplateConstant, writeError)
	}

	maxScore, meanScore := summarizeScores(rows)
	runner.logger.Info(scoringDoneMessageConstant,
		zap.Int(variantCountFieldConstant, len(rows)),
		zap.Float64(maxScoreOutputKeyConstant, maxScore),
		zap.Float64(meanScoreOutputKeyConstant, meanScore),
	)

	return map[string]any{
		scoresFileOutputKeyConstant:         settings.ScoresFile,
		scoredCountOutputKeyConstant:        len(rows),
		variantIdentifiersOutputKeyConstant: variantIdentifiers,
		maxScoreOutputKeyConstant:           maxScore,
		meanScoreOutputKeyConstant:          meanScore,
	}, nil
}

// loadPromptContexts reads sequence contexts for prompt enrichment. The
// contexts are advisory, so a missing or unreadable file only logs a
// warning.
func (runner *Runner) loadPromptContexts(settings Configuration) map[string]seqcontext.ContextRecord {
	if runner.chatClient == nil || len(settings.ContextsFile) == 0 {
		return nil
	}
	contextRecords, readError := seqcontext.ReadContexts(settings.ContextsFile)
	if readError != nil {
		runner.logger.Warn(contextsUnavailableMessageConstant,
			zap.String(contextsFileFieldConstant, settings.ContextsFile),
			zap.Error(readError),
		)
		return nil
	}
	contexts := make(map[string]seqcontext.ContextRecord, len(contextRecords))
	for _, contextRecord := range contextRecords {
		contexts[contextRecord.VariantIdentifier] = contextRecord
	}
	return contexts
}

func resolveThresholds(settings Configuration) impactThresholds {
	thresholds := impactThresholds{
		High:     settings.HighImpactThreshold,
		Moderate: settings.ModerateImpactThreshold,
	}
	if thresholds.High <= 0 {
		thresholds.High = defaultHighImpactThresholdConstant
	}
	if thresholds.Moderate <= 0 {
		thresholds.Moderate = defaultModerateImpactThresholdConstant
	}
	return thresholds
}

func heuristicScoreRow(record embedding.VariantEmbeddingRecord, settings Configuration, thresholds impactThresholds) ScoreRow {
	combined := settings.CosineWeight*(1-record.CosineSimilarity) +
		settings.EuclideanWeight*record.EuclideanDistance +
		settings.DifferenceWeight*record.DifferenceMagnitude
	final := clampUnitInterval(combined)
	return ScoreRow{
		VariantIdentifier:   record.VariantIdentifier,
		Chromosome:          record.Chromosome,
		Position:            record.Position,
		Reference:           record.Reference,
		Alternate:           record.Alternate,
		CosineSimilarity:    record.CosineSimilarity,
		EuclideanDistance:   record.EuclideanDistance,
		DifferenceMagnitude: record.DifferenceMagnitude,
		RawImpactScore:      record.ImpactScore,
		CombinedScore:       combined,
		FinalScore:          final,
		ImpactLevel:         classifyImpact(final, thresholds),
	}
}

func clampUnitInterval(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func classifyImpact(score float64, thresholds impactThresholds) string {
	if score >= thresholds.High {
		return ImpactLevelHigh
	}
	if score >= thresholds.Moderate {
		return ImpactLevelModerate
	}
	return ImpactLevelLow
}

func summarizeScores(rows []ScoreRow) (float64, float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	maxScore := 0.0
	totalScore := 0.0
	for _, row := range rows {
		if row.FinalScore > maxScore {
			maxScore = row.FinalScore
		}
		totalScore += row.FinalScore
	}
	return maxScore, totalScore / float64(len(rows))
}
