package plan

import "math"

const (
	defaultMinimumQualityConstant            = 30.0
	defaultMaximumAlleleFrequencyConstant    = 0.01
	defaultContextWindowSizeConstant         = 2000
	defaultGenosModelNameConstant            = "genos-1.2b"
	defaultGenosPoolingMethodConstant        = "mean"
	defaultCosineWeightConstant              = 0.5
	defaultEuclideanWeightConstant           = 0.3
	defaultDifferenceWeightConstant          = 0.2
	defaultHighImpactThresholdConstant       = 0.7
	defaultModerateImpactThresholdConstant   = 0.4
	defaultEvidenceTopCountConstant          = 5
	defaultEvidenceMinimumSimilarityConstant = 0.3
	defaultReportTopVariantsConstant         = 10
	defaultReportFormatConstant              = "markdown"
)

// defaultDamagingConsequences lists the VEP consequence terms that keep a
// variant during filtering when consequence annotations are present.
var defaultDamagingConsequences = []string{
	"missense_variant",
	"stop_gained",
	"stop_lost",
	"start_lost",
	"frameshift_variant",
	"splice_donor_variant",
	"splice_acceptor_variant",
}

// defaultReportSections lists every report section in render order.
var defaultReportSections = []string{
	"summary",
	"top_variants",
	"evidence",
	"recommendations",
}

// AnalysisSettings carries the tunable values baked into a compiled plan's
// task configurations.
type AnalysisSettings struct {
	ReferenceFASTAPath        string   `mapstructure:"reference_fasta" yaml:"reference_fasta"`
	KnowledgeBasePath         string   `mapstructure:"knowledge_base" yaml:"knowledge_base"`
	GenosModelName            string   `mapstructure:"genos_model" yaml:"genos_model"`
	GenosPoolingMethod        string   `mapstructure:"genos_pooling" yaml:"genos_pooling"`
	MinimumQuality            float64  `mapstructure:"min_quality" yaml:"min_quality"`
	MaximumAlleleFrequency    float64  `mapstructure:"max_allele_frequency" yaml:"max_allele_frequency"`
	DamagingConsequences      []string `mapstructure:"damaging_consequences" yaml:"damaging_consequences"`
	ContextWindowSize         int      `mapstructure:"context_window" yaml:"context_window"`
	CosineWeight              float64  `mapstructure:"cosine_weight" yaml:"cosine_weight"`
	EuclideanWeight           float64  `mapstructure:"euclidean_weight" yaml:"euclidean_weight"`
	DifferenceWeight          float64  `mapstructure:"difference_weight" yaml:"difference_weight"`
	HighImpactThreshold       float64  `mapstructure:"high_impact_threshold" yaml:"high_impact_threshold"`
	ModerateImpactThreshold   float64  `mapstructure:"moderate_impact_threshold" yaml:"moderate_impact_threshold"`
	EvidenceTopCount          int      `mapstructure:"evidence_top_count" yaml:"evidence_top_count"`
	EvidenceMinimumSimilarity float64  `mapstructure:"evidence_min_similarity" yaml:"evidence_min_similarity"`
	ReportTopVariants         int      `mapstructure:"report_top_variants" yaml:"report_top_variants"`
	ReportFormat              string   `mapstructure:"report_format" yaml:"report_format"`
	ReportSections            []string `mapstructure:"report_sections" yaml:"report_sections"`
}

// Sanitized fills zero-valued settings with their defaults.
func (settings AnalysisSettings) Sanitized() AnalysisSettings {
	sanitized := settings
	if sanitized.MinimumQuality <= 0 {
		sanitized.MinimumQuality = defaultMinimumQualityConstant
	}
	if sanitized.MaximumAlleleFrequency <= 0 {
		sanitized.MaximumAlleleFrequency = defaultMaximumAlleleFrequencyConstant
	}
	if len(sanitized.DamagingConsequences) == 0 {
		sanitized.DamagingConsequences = append([]string{}, defaultDamagingConsequences...)
	}
	if sanitized.ContextWindowSize <= 0 {
		sanitized.ContextWindowSize = defaultContextWindowSizeConstant
	}
	if len(sanitized.GenosModelName) == 0 {
		sanitized.GenosModelName = defaultGenosModelNameConstant
	}
	if len(sanitized.GenosPoolingMethod) == 0 {
		sanitized.GenosPoolingMethod = defaultGenosPoolingMethodConstant
	}
	if sanitized.CosineWeight == 0 && sanitized.EuclideanWeight == 0 && sanitized.DifferenceWeight == 0 {
		sanitized.CosineWeight = defaultCosineWeightConstant
		sanitized.EuclideanWeight = defaultEuclideanWeightConstant
		sanitized.DifferenceWeight = defaultDifferenceWeightConstant
	}
	if sanitized.HighImpactThreshold <= 0 {
		sanitized.HighImpactThreshold = defaultHighImpactThresholdConstant
	}
	if sanitized.ModerateImpactThreshold <= 0 {
		sanitized.ModerateImpactThreshold = defaultModerateImpactThresholdConstant
	}
	if sanitized.EvidenceTopCount <= 0 {
		sanitized.EvidenceTopCount = defaultEvidenceTopCountConstant
	}
	if sanitized.EvidenceMinimumSimilarity <= 0 {
		sanitized.EvidenceMinimumSimilarity = defaultEvidenceMinimumSimilarityConstant
	}
	if sanitized.ReportTopVariants <= 0 {
		sanitized.ReportTopVariants = defaultReportTopVariantsConstant
	}
	if len(sanitized.ReportFormat) == 0 {
		sanitized.ReportFormat = defaultReportFormatConstant
	}
	if len(sanitized.ReportSections) == 0 {
		sanitized.ReportSections = append([]string{}, defaultReportSections...)
	}
	return sanitized
}

// configNumber keeps persisted plan configurations round-trip stable: YAML
// renders integral floats without a decimal point, which would reload as
// integers, so integral values are baked as integers up front.
func configNumber(value float64) any {
	if value == math.Trunc(value) && math.Abs(value) < float64(math.MaxInt32) {
		return int(value)
	}
	return value
}
