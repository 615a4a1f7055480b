package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/knowledge"
	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/tasks/scoring"
	"github.com/tyemirov/genopipe/internal/vcf"
)

// TaskType identifies the evidence gathering task.
const TaskType = "evidence_rag"

const (
	evidenceFileOutputKeyConstant       = "evidence_file"
	evidenceCountOutputKeyConstant      = "evidence_count"
	variantIdentifiersOutputKeyConstant = "variant_ids"

	clinvarSourceWeightConstant    = 1.0
	gnomadSourceWeightConstant     = 0.8
	omimSourceWeightConstant       = 0.8
	phenotypeSourceWeightConstant  = 0.6
	insilicoSourceWeightConstant   = 0.5
	predictionSourceWeightConstant = 0.4

	foundDataKeyConstant       = "found"
	simulatedValueConstant     = "Simulated"
	remoteOriginValueConstant  = "remote"
	clinvarMissMessageConstant = "Not found in local ClinVar DB"
	defaultTopCountConstant    = 10

	decodeConfigurationTemplateConstant = "decode evidence configuration: %w"
	readScoresTemplateConstant          = "read scores: %w"
	missingScoresMessageConstant        = "evidence gathering requires a scores_file path"
	missingEvidenceMessageConstant      = "evidence gathering requires an evidence_file path"

	gatherStartMessageConstant           = "Gathering variant evidence"
	gatherDoneMessageConstant            = "Variant evidence gathered"
	variantsUnavailableMessageConstant   = "Variants file unavailable for allele frequencies"
	remoteLookupFailedMessageConstant    = "Remote annotation lookup failed"
	clinvarLookupFailedMessageConstant   = "Local ClinVar lookup failed"
	phenotypeSearchFailedMessageConstant = "Phenotype disease search failed"

	variantCountFieldConstant = "variant_count"
	phenotypeFieldConstant    = "phenotype"
	variantFieldConstant      = "variant_id"
	variantsFileFieldConstant = "variants_file"
)

// Configuration carries the resolved evidence task settings.
type Configuration struct {
	ScoresFile    string  `mapstructure:"scores_file"`
	VariantsFile  string  `mapstructure:"variants_file"`
	EvidenceFile  string  `mapstructure:"evidence_file"`
	TopCount      int     `mapstructure:"top_count"`
	MinSimilarity float64 `mapstructure:"min_similarity"`
	Phenotype     string  `mapstructure:"phenotype"`
}

// KnowledgeStore is the slice of the local knowledge base the evidence
// task consults.
type KnowledgeStore interface {
	Lookup(chromosome string, position int, referenceAllele string, alternateAllele string) (knowledge.ClinVarRecord, bool, error)
	SearchDiseases(phenotype string, limit int) ([]knowledge.DiseaseMatch, error)
}

// AnnotationClient queries a remote annotation service for variants the
// local store misses.
type AnnotationClient interface {
	QueryVariant(executionContext context.Context, chromosome string, position int, referenceAllele string, alternateAllele string) (knowledge.RemoteEvidence, error)
}

// Dependencies configure a Runner. A nil Store selects simulated ClinVar
// evidence; a nil RemoteClient skips remote annotation lookups.
type Dependencies struct {
	Logger       *zap.Logger
	Store        KnowledgeStore
	RemoteClient AnnotationClient
}

// Runner gathers weighted evidence for every scored variant.
type Runner struct {
	logger       *zap.Logger
	store        KnowledgeStore
	remoteClient AnnotationClient
}

// NewRunner builds a Runner, substituting a no-op logger when none is
// supplied.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:       logger,
		store:        dependencies.Store,
		remoteClient: dependencies.RemoteClient,
	}
}

// TaskContract declares the outputs the task guarantees on success.
func TaskContract() registry.Contract {
	return registry.Contract{
		TaskType: TaskType,
		OutputKeys: []string{
			evidenceFileOutputKeyConstant,
			evidenceCountOutputKeyConstant,
			variantIdentifiersOutputKeyConstant,
		},
		PrimaryEntityKey:  variantIdentifiersOutputKeyConstant,
		IntentionalFilter: true,
	}
}

// Invoke gathers evidence for each scored variant, consulting the local
// ClinVar store first and the remote annotation service for anything the
// store misses, and writes the evidence document into the run directory.
func (runner *Runner) Invoke(executionContext context.Context, configuration map[string]any, environment registry.RunEnvironment) (map[string]any, error) {
	settings := Configuration{}
	if decodeError := registry.DecodeConfiguration(configuration, &settings); decodeError != nil {
		return nil, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}
	if len(settings.ScoresFile) == 0 {
		return nil, errors.New(missingScoresMessageConstant)
	}
	if len(settings.EvidenceFile) == 0 {
		return nil, errors.New(missingEvidenceMessageConstant)
	}

	rows, readError := scoring.ReadTable(settings.ScoresFile)
	if readError != nil {
		return nil, fmt.Errorf(readScoresTemplateConstant, readError)
	}

	runner.logger.Info(gatherStartMessageConstant,
		zap.Int(variantCountFieldConstant, len(rows)),
		zap.String(phenotypeFieldConstant, settings.Phenotype),
	)

	alleleFrequencies := runner.loadAlleleFrequencies(settings)
	phenotypeMatches := runner.phenotypeMatches(settings)

	evidenceByVariant := make(map[string]VariantEvidence, len(rows))
	variantIdentifiers := make([]string, 0, len(rows))
	for _, row := range rows {
		evidenceByVariant[row.VariantIdentifier] = runner.gatherVariantEvidence(executionContext, row, alleleFrequencies, phenotypeMatches)
		variantIdentifiers = append(variantIdentifiers, row.VariantIdentifier)
	}

	if writeError := WriteEvidence(settings.EvidenceFile, evidenceByVariant); writeError != nil {
		return nil, writeError
	}

	runner.logger.Info(gatherDoneMessageConstant, zap.Int(evidenceCountOutputKeyConstant, len(evidenceByVariant)))

	return map[string]any{
		evidenceFileOutputKeyConstant:       settings.EvidenceFile,
		evidenceCountOutputKeyConstant:      len(evidenceByVariant),
		variantIdentifiersOutputKeyConstant: variantIdentifiers,
	}, nil
}

// loadAlleleFrequencies indexes observed allele frequencies from the
// filtered variants file. The frequencies only back the gnomAD source
// when no remote data is available, so a missing file is not fatal.
func (runner *Runner) loadAlleleFrequencies(settings Configuration) map[string]float64 {
	if len(settings.VariantsFile) == 0 {
		return nil
	}
	records, readError := vcf.ReadFile(settings.VariantsFile)
	if readError != nil {
		runner.logger.Warn(variantsUnavailableMessageConstant,
			zap.String(variantsFileFieldConstant, settings.VariantsFile),
			zap.Error(readError),
		)
		return nil
	}
	frequencies := make(map[string]float64, len(records))
	for _, record := range records {
		frequencies[record.DisplayIdentifier()] = record.Info.MaximumAlleleFrequency()
	}
	return frequencies
}

// phenotypeMatches searches stored disease annotations against the case
// phenotype and keeps the hits above the similarity floor, keyed by
// variant locus.
func (runner *Runner) phenotypeMatches(settings Configuration) map[string]knowledge.DiseaseMatch {
	if runner.store == nil || len(strings.TrimSpace(settings.Phenotype)) == 0 {
		return nil
	}
	topCount := settings.TopCount
	if topCount <= 0 {
		topCount = defaultTopCountConstant
	}
	matches, searchError := runner.store.SearchDiseases(settings.Phenotype, topCount)
	if searchError != nil {
		runner.logger.Warn(phenotypeSearchFailedMessageConstant, zap.Error(searchError))
		return nil
	}
	matchesByKey := make(map[string]knowledge.DiseaseMatch, len(matches))
	for _, match := range matches {
		if match.Similarity >= settings.MinSimilarity {
			matchesByKey[match.VariantKey] = match
		}
	}
	return matchesByKey
}

func (runner *Runner) gatherVariantEvidence(executionContext context.Context, row scoring.ScoreRow, alleleFrequencies map[string]float64, phenotypeMatches map[string]knowledge.DiseaseMatch) VariantEvidence {
	remote := runner.queryRemote(executionContext, row)

	sources := []Source{
		runner.clinvarSource(row, remote),
		gnomadSource(row, remote, alleleFrequencies),
		omimSource(),
	}
	if remote.Predictions != nil {
		sources = append(sources, insilicoSource(*remote.Predictions))
	}
	if match, matched := phenotypeMatches[knowledge.VariantKey(row.Chromosome, row.Position, row.Reference, row.Alternate)]; matched {
		sources = append(sources, phenotypeSource(match))
	}
	sources = append(sources, predictionSource(row))

	return VariantEvidence{
		VariantIdentifier: row.VariantIdentifier,
		Chromosome:        row.Chromosome,
		Position:          row.Position,
		Reference:         row.Reference,
		Alternate:         row.Alternate,
		Sources:           sources,
	}
}

func (runner *Runner) queryRemote(executionContext context.Context, row scoring.ScoreRow) knowledge.RemoteEvidence {
	if runner.remoteClient == nil {
		return knowledge.RemoteEvidence{}
	}
	remote, queryError := runner.remoteClient.QueryVariant(executionContext, row.Chromosome, row.Position, row.Reference, row.Alternate)
	if queryError != nil {
		runner.logger.Warn(remoteLookupFailedMessageConstant,
			zap.String(variantFieldConstant, row.VariantIdentifier),
			zap.Error(queryError),
		)
		return knowledge.RemoteEvidence{}
	}
	return remote
}

// clinvarSource consults the local store first and falls back to remote
// ClinVar data for variants the store misses. Without a store the source
// reports simulated placeholders.
func (runner *Runner) clinvarSource(row scoring.ScoreRow, remote knowledge.RemoteEvidence) Source {
	source := Source{Name: SourceNameClinVar, Weight: clinvarSourceWeightConstant}
	if runner.store == nil {
		source.Data = map[string]any{
			foundDataKeyConstant: false,
			"significance":       simulatedValueConstant,
			"review_status":      simulatedValueConstant,
		}
		return source
	}

	record, found, lookupError := runner.store.Lookup(row.Chromosome, row.Position, row.Reference, row.Alternate)
	if lookupError != nil {
		runner.logger.Warn(clinvarLookupFailedMessageConstant,
			zap.String(variantFieldConstant, row.VariantIdentifier),
			zap.Error(lookupError),
		)
	}
	if found {
		source.Data = map[string]any{
			foundDataKeyConstant:    true,
			"variant_id":            record.VariantIdentifier,
			"clinical_significance": record.ClinicalSignificance,
			"disease_name":          record.DiseaseName,
		}
		return source
	}
	if remote.ClinVar != nil {
		source.Data = map[string]any{
			foundDataKeyConstant:    true,
			"variant_id":            remote.ClinVar.VariantIdentifier,
			"clinical_significance": remote.ClinVar.ClinicalSignificance,
			"disease_name":          remote.ClinVar.DiseaseName,
			"review_status":         remote.ClinVar.ReviewStatus,
			"origin":                remoteOriginValueConstant,
		}
		return source
	}
	source.Data = map[string]any{
		foundDataKeyConstant: false,
		"message":            clinvarMissMessageConstant,
	}
	return source
}

func gnomadSource(row scoring.ScoreRow, remote knowledge.RemoteEvidence, alleleFrequencies map[string]float64) Source {
	source := Source{Name: SourceNameGnomAD, Weight: gnomadSourceWeightConstant}
	if remote.GnomAD != nil {
		source.Data = map[string]any{
			foundDataKeyConstant: true,
			"allele_frequency":   remote.GnomAD.AlleleFrequency,
			"allele_count":       remote.GnomAD.AlleleCount,
			"allele_number":      remote.GnomAD.AlleleNumber,
		}
		return source
	}
	source.Data = map[string]any{
		foundDataKeyConstant: false,
		"allele_frequency":   alleleFrequencies[row.VariantIdentifier],
	}
	return source
}

func omimSource() Source {
	return Source{Name: SourceNameOMIM, Weight: omimSourceWeightConstant, Data: map[string]any{
		foundDataKeyConstant: false,
		"diseases":           []string{},
	}}
}

func insilicoSource(predictions knowledge.RemotePredictions) Source {
	return Source{Name: SourceNameDbNSFP, Weight: insilicoSourceWeightConstant, Data: map[string]any{
		foundDataKeyConstant: true,
		"sift":               predictions.SIFT,
		"polyphen":           predictions.PolyPhen,
		"revel_score":        predictions.REVELScore,
	}}
}

func phenotypeSource(match knowledge.DiseaseMatch) Source {
	return Source{Name: SourceNamePhenotype, Weight: phenotypeSourceWeightConstant, Data: map[string]any{
		foundDataKeyConstant: true,
		"disease_name":       match.DiseaseName,
		"significance":       match.Significance,
		"similarity":         match.Similarity,
	}}
}

func predictionSource(row scoring.ScoreRow) Source {
	return Source{Name: SourceNamePrediction, Weight: predictionSourceWeightConstant, Data: map[string]any{
		"final_score":  row.FinalScore,
		"impact_level": row.ImpactLevel,
	}}
}
