package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/tasks/seqcontext"
	"github.com/tyemirov/utils/llm"
)

const (
	assessmentMaxTokensConstant       = 512
	promptFlankLengthConstant         = 40
	defaultAssessmentScoreConstant    = 0.5
	jsonFencePrefixConstant           = "```json"
	fenceSuffixConstant               = "```"
	fallbackExplanationConstant       = "language model call failed, default score applied"
	assessmentFallbackMessageConstant = "Language model assessment failed, using default score"
	variantFieldConstant              = "variant_id"
)

type chatAssessment struct {
	PathogenicityScore *float64 `json:"pathogenicity_score"`
	ImpactLevel        string   `json:"impact_level"`
	Explanation        string   `json:"explanation"`
}

// applyChatAssessment replaces the heuristic verdict on the row with the
// model's pathogenicity call. Any chat or parse failure falls back to a
// neutral score so one bad response never fails the task.
func (runner *Runner) applyChatAssessment(executionContext context.Context, row *ScoreRow, promptContext seqcontext.ContextRecord) {
	response, chatError := runner.chatClient.Chat(executionContext, buildAssessmentRequest(*row, promptContext))
	if chatError != nil {
		runner.noteAssessmentFallback(row, chatError)
		return
	}
	assessment, parseError := parseChatAssessment(response)
	if parseError != nil {
		runner.noteAssessmentFallback(row, parseError)
		return
	}

	score := defaultAssessmentScoreConstant
	if assessment.PathogenicityScore != nil {
		score = clampUnitInterval(*assessment.PathogenicityScore)
	}
	impact := strings.ToUpper(strings.TrimSpace(assessment.ImpactLevel))
	if impact != ImpactLevelHigh && impact != ImpactLevelModerate && impact != ImpactLevelLow {
		impact = classifyImpact(score, impactThresholds{
			High:     defaultHighImpactThresholdConstant,
			Moderate: defaultModerateImpactThresholdConstant,
		})
	}

	row.FinalScore = score
	row.ImpactLevel = impact
	row.Explanation = strings.TrimSpace(assessment.Explanation)
}

func (runner *Runner) noteAssessmentFallback(row *ScoreRow, cause error) {
	runner.logger.Warn(assessmentFallbackMessageConstant,
		zap.String(variantFieldConstant, row.VariantIdentifier),
		zap.Error(cause),
	)
	row.FinalScore = defaultAssessmentScoreConstant
	row.ImpactLevel = ImpactLevelModerate
	row.Explanation = fallbackExplanationConstant
}

func buildAssessmentRequest(row ScoreRow, promptContext seqcontext.ContextRecord) llm.ChatRequest {
	systemMessage := llm.Message{
		Role: "system",
		Content: strings.Join([]string{
			"You are a clinical geneticist assessing the pathogenicity of human genome variants.",
			"Respond with a single JSON object with fields pathogenicity_score (a number between 0 and 1 where 1 is most pathogenic), impact_level (HIGH, MODERATE, or LOW), and explanation (at most 50 words).",
			"Do not include commentary, code fences, or any text outside the JSON object.",
		}, " "),
	}

	userSections := []string{
		fmt.Sprintf("Variant %s at %s:%d changes %s to %s.", row.VariantIdentifier, row.Chromosome, row.Position, row.Reference, row.Alternate),
		fmt.Sprintf("Cosine similarity between reference and alternate embeddings: %.4f", row.CosineSimilarity),
		fmt.Sprintf("Euclidean distance: %.4f", row.EuclideanDistance),
		fmt.Sprintf("Mean absolute embedding difference: %.4f", row.DifferenceMagnitude),
	}
	if len(promptContext.ReferenceSequence) > 0 {
		userSections = append(userSections,
			"Reference context: "+trimPromptSequence(promptContext.ReferenceSequence, promptContext.WindowSize),
			"Alternate context: "+trimPromptSequence(promptContext.AlternateSequence, promptContext.WindowSize),
		)
	}
	userSections = append(userSections, "Return only the JSON object.")

	return llm.ChatRequest{
		Messages: []llm.Message{
			systemMessage,
			{Role: "user", Content: strings.Join(userSections, "\n")},
		},
		MaxTokens: assessmentMaxTokensConstant,
	}
}

func parseChatAssessment(response string) (chatAssessment, error) {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, jsonFencePrefixConstant) {
		trimmed = trimmed[len(jsonFencePrefixConstant):]
	}
	if strings.HasSuffix(trimmed, fenceSuffixConstant) {
		trimmed = trimmed[:len(trimmed)-len(fenceSuffixConstant)]
	}

	assessment := chatAssessment{}
	if decodeError := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &assessment); decodeError != nil {
		return chatAssessment{}, decodeError
	}
	return assessment, nil
}

// trimPromptSequence keeps the bases closest to the variant so long windows
// do not bloat the prompt.
func trimPromptSequence(sequence string, windowSize int) string {
	limit := 2*promptFlankLengthConstant + 1
	if len(sequence) <= limit {
		return sequence
	}
	center := windowSize
	if center >= len(sequence) {
		center = len(sequence) / 2
	}
	start := center - promptFlankLengthConstant
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(sequence) {
		end = len(sequence)
		start = end - limit
	}
	return sequence[start:end]
}
