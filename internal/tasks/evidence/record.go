// Package evidence assembles per-variant supporting evidence from the
// local knowledge base, remote annotation services, and the scoring
// stage's own prediction, weighted by source reliability.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Source names recorded in evidence documents.
const (
	SourceNameClinVar    = "clinvar"
	SourceNameGnomAD     = "gnomad"
	SourceNameOMIM       = "omim"
	SourceNameDbNSFP     = "dbnsfp"
	SourceNamePhenotype  = "phenotype_match"
	SourceNamePrediction = "prediction"
)

const (
	evidenceFilePermissionsConstant      = 0o644
	evidenceDirectoryPermissionsConstant = 0o755
	writeEvidenceTemplateConstant        = "write evidence to %s: %w"
	readEvidenceTemplateConstant         = "read evidence from %s: %w"
)

// Source is one evidence lookup result with its reliability weight.
type Source struct {
	Name   string         `json:"source"`
	Weight float64        `json:"weight"`
	Data   map[string]any `json:"data"`
}

// VariantEvidence collects every source consulted for one variant.
type VariantEvidence struct {
	VariantIdentifier string   `json:"variant_id"`
	Chromosome        string   `json:"chrom"`
	Position          int      `json:"pos"`
	Reference         string   `json:"ref"`
	Alternate         string   `json:"alt"`
	Sources           []Source `json:"sources"`
}

// WriteEvidence persists the evidence map keyed by variant identifier as
// an indented JSON document.
func WriteEvidence(path string, evidence map[string]VariantEvidence) error {
	encodedEvidence, encodeError := json.MarshalIndent(evidence, "", "  ")
	if encodeError != nil {
		return fmt.Errorf(writeEvidenceTemplateConstant, path, encodeError)
	}
	if directoryError := os.MkdirAll(filepath.Dir(path), evidenceDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(writeEvidenceTemplateConstant, path, directoryError)
	}
	if writeError := os.WriteFile(path, encodedEvidence, evidenceFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeEvidenceTemplateConstant, path, writeError)
	}
	return nil
}

// ReadEvidence loads a previously written evidence document.
func ReadEvidence(path string) (map[string]VariantEvidence, error) {
	encodedEvidence, readError := os.ReadFile(path)
	if readError != nil {
		return nil, fmt.Errorf(readEvidenceTemplateConstant, path, readError)
	}
	evidence := map[string]VariantEvidence{}
	if decodeError := json.Unmarshal(encodedEvidence, &evidence); decodeError != nil {
		return nil, fmt.Errorf(readEvidenceTemplateConstant, path, decodeError)
	}
	return evidence, nil
}
