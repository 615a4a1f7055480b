package knowledge

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tyemirov/genopipe/internal/vcf"
)

const (
	importBatchSizeConstant            = 1000
	significanceInfoKeyConstant        = "CLNSIG"
	diseaseInfoKeyConstant             = "CLNDN"
	diseaseWordSeparatorConstant       = "_"
	unknownSignificanceConstant        = "Unknown"
	openClinVarTemplateConstant        = "open clinvar file %s: %w"
	readClinVarTemplateConstant        = "read clinvar file %s: %w"
	importClinVarBatchTemplateConstant = "import clinvar batch: %w"
)

// ImportOptions bound a ClinVar import.
type ImportOptions struct {
	// ChromosomeFilter keeps only rows whose chromosome name contains
	// this substring. Empty keeps every row.
	ChromosomeFilter string
	// RecordLimit stops the import after this many stored records. Zero
	// keeps every row.
	RecordLimit int
}

// ImportSummary reports what a ClinVar import stored.
type ImportSummary struct {
	ImportedCount int
	SkippedCount  int
}

// ImportClinVarVCF loads ClinVar assertions from a plain or gzipped
// variants file into the store.
func (store *Store) ImportClinVarVCF(path string, options ImportOptions) (ImportSummary, error) {
	clinvarFile, openError := vcf.Open(path)
	if openError != nil {
		return ImportSummary{}, fmt.Errorf(openClinVarTemplateConstant, path, openError)
	}
	defer clinvarFile.Close()

	summary := ImportSummary{}
	batch := make([]ClinVarRecord, 0, importBatchSizeConstant)
	for {
		if options.RecordLimit > 0 && summary.ImportedCount+len(batch) >= options.RecordLimit {
			break
		}

		variantRecord, readError := clinvarFile.Read()
		if errors.Is(readError, io.EOF) {
			break
		}
		if readError != nil {
			return summary, fmt.Errorf(readClinVarTemplateConstant, path, readError)
		}

		if len(options.ChromosomeFilter) > 0 && !strings.Contains(variantRecord.Chromosome, options.ChromosomeFilter) {
			summary.SkippedCount++
			continue
		}

		batch = append(batch, clinVarRecordFromVariant(variantRecord))
		if len(batch) >= importBatchSizeConstant {
			if batchError := store.PutBatch(batch); batchError != nil {
				return summary, fmt.Errorf(importClinVarBatchTemplateConstant, batchError)
			}
			summary.ImportedCount += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if batchError := store.PutBatch(batch); batchError != nil {
			return summary, fmt.Errorf(importClinVarBatchTemplateConstant, batchError)
		}
		summary.ImportedCount += len(batch)
	}
	return summary, nil
}

func clinVarRecordFromVariant(variantRecord vcf.Record) ClinVarRecord {
	significance, significanceFound := variantRecord.Info.Value(significanceInfoKeyConstant)
	if !significanceFound || len(significance) == 0 {
		significance = unknownSignificanceConstant
	}

	diseaseName, _ := variantRecord.Info.Value(diseaseInfoKeyConstant)
	diseaseName = strings.ReplaceAll(diseaseName, diseaseWordSeparatorConstant, " ")

	return ClinVarRecord{
		Chromosome:           strings.TrimPrefix(variantRecord.Chromosome, chromosomePrefixConstant),
		Position:             variantRecord.Position,
		Reference:            variantRecord.Reference,
		Alternate:            variantRecord.Alternate,
		VariantIdentifier:    variantRecord.Identifier,
		ClinicalSignificance: significance,
		DiseaseName:          diseaseName,
		Info:                 variantRecord.Info.String(),
	}
}
