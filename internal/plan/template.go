package plan

import "path/filepath"

const (
	// AnalysisTypeGermline selects the built-in germline variant analysis template.
	AnalysisTypeGermline = "germline"

	// TaskTypeVariantFilter filters raw variants by quality, frequency, and consequence.
	TaskTypeVariantFilter = "variant_filter"
	// TaskTypeSequenceContext extracts reference and alternate sequence windows.
	TaskTypeSequenceContext = "sequence_context"
	// TaskTypeGenosEmbedding embeds sequence windows through the Genos server.
	TaskTypeGenosEmbedding = "genos_embedding"
	// TaskTypeScoring combines embedding distances into impact scores.
	TaskTypeScoring = "scoring"
	// TaskTypeEvidence retrieves supporting evidence for scored variants.
	TaskTypeEvidence = "evidence_rag"
	// TaskTypeReport renders the final analysis report.
	TaskTypeReport = "report_generation"
)

const (
	// PlanFileName is the persisted plan document inside a run directory.
	PlanFileName = "plan.yaml"
	// FilteredVariantsFileName is the filtered VCF artifact inside a run directory.
	FilteredVariantsFileName = "variants.filtered.vcf"
	// FilterStatsFileName is the filtering statistics artifact inside a run directory.
	FilterStatsFileName = "filter_stats.json"
	// ContextsFileName is the sequence-window artifact inside a run directory.
	ContextsFileName = "contexts.jsonl"
	// EmbeddingsFileName is the embedding artifact inside a run directory.
	EmbeddingsFileName = "embeddings.jsonl"
	// ScoresFileName is the per-variant score table inside a run directory.
	ScoresFileName = "scores.tsv"
	// EvidenceFileName is the evidence artifact inside a run directory.
	EvidenceFileName = "evidence.json"
	// ReportFileName is the rendered report inside a run directory.
	ReportFileName = "report.md"
)

// germlineTaskSpecs instantiates the germline analysis template, baking run
// parameters and analysis settings into each task's configuration.
func germlineTaskSpecs(parameters RunParameters, settings AnalysisSettings) []TaskSpec {
	consequences := make([]any, 0, len(settings.DamagingConsequences))
	for _, consequence := range settings.DamagingConsequences {
		consequences = append(consequences, consequence)
	}

	reportSections := make([]any, 0, len(settings.ReportSections))
	for _, sectionName := range settings.ReportSections {
		reportSections = append(reportSections, sectionName)
	}

	return []TaskSpec{
		{
			Identifier: TaskTypeVariantFilter,
			Type:       TaskTypeVariantFilter,
			Config: map[string]any{
				"input_vcf":            parameters.InputPath,
				"output_vcf":           filepath.Join(parameters.OutputDirectory, FilteredVariantsFileName),
				"stats_file":           filepath.Join(parameters.OutputDirectory, FilterStatsFileName),
				"min_quality":          configNumber(settings.MinimumQuality),
				"max_allele_frequency": configNumber(settings.MaximumAlleleFrequency),
				"consequences":         consequences,
			},
		},
		{
			Identifier: TaskTypeSequenceContext,
			Type:       TaskTypeSequenceContext,
			DependsOn:  []string{TaskTypeVariantFilter},
			Config: map[string]any{
				"variants_file":   "${output.variant_filter.filtered_vcf}",
				"reference_fasta": settings.ReferenceFASTAPath,
				"window_size":     settings.ContextWindowSize,
				"contexts_file":   filepath.Join(parameters.OutputDirectory, ContextsFileName),
			},
		},
		{
			Identifier: TaskTypeGenosEmbedding,
			Type:       TaskTypeGenosEmbedding,
			DependsOn:  []string{TaskTypeSequenceContext},
			Config: map[string]any{
				"contexts_file":   "${output.sequence_context.contexts_file}",
				"embeddings_file": filepath.Join(parameters.OutputDirectory, EmbeddingsFileName),
				"model_name":      settings.GenosModelName,
				"pooling_method":  settings.GenosPoolingMethod,
			},
		},
		{
			Identifier: TaskTypeScoring,
			Type:       TaskTypeScoring,
			DependsOn:  []string{TaskTypeGenosEmbedding, TaskTypeSequenceContext},
			Config: map[string]any{
				"embeddings_file":           "${output.genos_embedding.embeddings_file}",
				"contexts_file":             "${output.sequence_context.contexts_file}",
				"scores_file":               filepath.Join(parameters.OutputDirectory, ScoresFileName),
				"cosine_weight":             configNumber(settings.CosineWeight),
				"euclidean_weight":          configNumber(settings.EuclideanWeight),
				"difference_weight":         configNumber(settings.DifferenceWeight),
				"high_impact_threshold":     configNumber(settings.HighImpactThreshold),
				"moderate_impact_threshold": configNumber(settings.ModerateImpactThreshold),
			},
		},
		{
			Identifier: TaskTypeEvidence,
			Type:       TaskTypeEvidence,
			DependsOn:  []string{TaskTypeScoring, TaskTypeVariantFilter},
			Config: map[string]any{
				"scores_file":    "${output.scoring.scores_file}",
				"variants_file":  "${output.variant_filter.filtered_vcf}",
				"evidence_file":  filepath.Join(parameters.OutputDirectory, EvidenceFileName),
				"top_count":      settings.EvidenceTopCount,
				"min_similarity": configNumber(settings.EvidenceMinimumSimilarity),
				"phenotype":      parameters.Phenotype,
			},
		},
		{
			Identifier: TaskTypeReport,
			Type:       TaskTypeReport,
			DependsOn:  []string{TaskTypeScoring, TaskTypeEvidence, TaskTypeVariantFilter},
			Config: map[string]any{
				"scores_file":      "${output.scoring.scores_file}",
				"evidence_file":    "${output.evidence_rag.evidence_file}",
				"stats_file":       "${output.variant_filter.stats_file}",
				"report_file":      filepath.Join(parameters.OutputDirectory, ReportFileName),
				"sample_id":        parameters.SampleIdentifier,
				"phenotype":        parameters.Phenotype,
				"top_variants":     settings.ReportTopVariants,
				"format":           settings.ReportFormat,
				"include_sections": reportSections,
			},
		},
	}
}
