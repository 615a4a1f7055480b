package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalysisSettingsSanitizedFillsDefaults(t *testing.T) {
	sanitized := AnalysisSettings{}.Sanitized()

	require.Equal(t, 30.0, sanitized.MinimumQuality)
	require.Equal(t, 0.01, sanitized.MaximumAlleleFrequency)
	require.Equal(t, 2000, sanitized.ContextWindowSize)
	require.Contains(t, sanitized.DamagingConsequences, "missense_variant")
	require.Equal(t, "genos-1.2b", sanitized.GenosModelName)
	require.Equal(t, "mean", sanitized.GenosPoolingMethod)
	require.Equal(t, 0.5, sanitized.CosineWeight)
	require.Equal(t, 0.3, sanitized.EuclideanWeight)
	require.Equal(t, 0.2, sanitized.DifferenceWeight)
	require.Equal(t, 0.7, sanitized.HighImpactThreshold)
	require.Equal(t, 0.4, sanitized.ModerateImpactThreshold)
	require.Equal(t, 5, sanitized.EvidenceTopCount)
	require.Equal(t, 0.3, sanitized.EvidenceMinimumSimilarity)
	require.Equal(t, 10, sanitized.ReportTopVariants)
	require.Equal(t, "markdown", sanitized.ReportFormat)
	require.Equal(t, []string{"summary", "top_variants", "evidence", "recommendations"}, sanitized.ReportSections)
}

func TestAnalysisSettingsSanitizedKeepsExplicitValues(t *testing.T) {
	configured := AnalysisSettings{
		MinimumQuality:         50,
		MaximumAlleleFrequency: 0.05,
		ContextWindowSize:      512,
		DamagingConsequences:   []string{"stop_gained"},
		CosineWeight:           0.8,
		EuclideanWeight:        0.1,
		DifferenceWeight:       0.1,
		ReportFormat:           "html",
		ReportSections:         []string{"summary"},
	}

	sanitized := configured.Sanitized()
	require.Equal(t, 50.0, sanitized.MinimumQuality)
	require.Equal(t, 0.05, sanitized.MaximumAlleleFrequency)
	require.Equal(t, 512, sanitized.ContextWindowSize)
	require.Equal(t, []string{"stop_gained"}, sanitized.DamagingConsequences)
	require.Equal(t, 0.8, sanitized.CosineWeight)
	require.Equal(t, "html", sanitized.ReportFormat)
	require.Equal(t, []string{"summary"}, sanitized.ReportSections)
}

func TestConfigNumberPreservesRoundTripStability(t *testing.T) {
	require.Equal(t, 30, configNumber(30.0))
	require.Equal(t, -2, configNumber(-2.0))
	require.Equal(t, 0.01, configNumber(0.01))
	require.Equal(t, 0.7, configNumber(0.7))
}
