package knowledge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.etcd.io/bbolt"
)

const (
	catalogScannerBufferSizeConstant   = 1 << 20
	openCatalogTemplateConstant        = "open catalog file %s: %w"
	readCatalogTemplateConstant        = "read catalog file %s: %w"
	decodeCatalogEntryTemplateConstant = "decode catalog entry on line %d: %w"
	indexCatalogTemplateConstant       = "index catalog entries: %w"
	catalogDocumentPrefixConstant      = "catalog:"
)

// CatalogEntry is one phenotype catalog row: a disease name with optional
// synonyms and a free-text description, plus the variant loci it annotates
// as chrom:pos:ref:alt keys.
type CatalogEntry struct {
	DiseaseName  string   `json:"disease_name"`
	Synonyms     []string `json:"synonyms"`
	Description  string   `json:"description"`
	Significance string   `json:"significance"`
	VariantKeys  []string `json:"variant_keys"`
}

// ImportDiseaseCatalogJSONL indexes a phenotype catalog into the disease
// search index, one JSON entry per line. Entries naming variant keys replace
// the search documents at those loci with the richer catalog text; entries
// without keys are indexed standalone and rank phenotype searches without
// binding to a variant. Returns the number of entries indexed.
func (store *Store) ImportDiseaseCatalogJSONL(path string) (int, error) {
	catalogFile, openError := os.Open(path)
	if openError != nil {
		return 0, fmt.Errorf(openCatalogTemplateConstant, path, openError)
	}
	defer catalogFile.Close()

	indexBatch := store.diseaseIndex.NewBatch()
	entryCount := 0
	lineNumber := 0

	scanner := bufio.NewScanner(catalogFile)
	scanner.Buffer(make([]byte, 0, catalogScannerBufferSizeConstant), catalogScannerBufferSizeConstant)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}

		var entry CatalogEntry
		if decodeError := json.Unmarshal([]byte(line), &entry); decodeError != nil {
			return entryCount, fmt.Errorf(decodeCatalogEntryTemplateConstant, lineNumber, decodeError)
		}
		if len(strings.TrimSpace(entry.DiseaseName)) == 0 {
			continue
		}

		document := diseaseDocument{
			Disease:      strings.TrimSpace(entry.DiseaseName),
			Significance: strings.TrimSpace(entry.Significance),
			Description:  catalogDescription(entry),
		}

		documentIdentifiers := variantKeyIdentifiers(entry, lineNumber)
		for _, documentIdentifier := range documentIdentifiers {
			indexedDocument := document
			if len(indexedDocument.Significance) == 0 {
				indexedDocument.Significance = store.storedSignificance(documentIdentifier)
			}
			if indexError := indexBatch.Index(documentIdentifier, indexedDocument); indexError != nil {
				return entryCount, fmt.Errorf(indexCatalogTemplateConstant, indexError)
			}
		}
		entryCount++
	}
	if scanError := scanner.Err(); scanError != nil {
		return entryCount, fmt.Errorf(readCatalogTemplateConstant, path, scanError)
	}

	if indexBatch.Size() > 0 {
		if batchError := store.diseaseIndex.Batch(indexBatch); batchError != nil {
			return entryCount, fmt.Errorf(indexCatalogTemplateConstant, batchError)
		}
	}
	return entryCount, nil
}

func variantKeyIdentifiers(entry CatalogEntry, lineNumber int) []string {
	identifiers := make([]string, 0, len(entry.VariantKeys))
	for _, variantKey := range entry.VariantKeys {
		trimmedKey := strings.TrimSpace(variantKey)
		if len(trimmedKey) > 0 {
			identifiers = append(identifiers, trimmedKey)
		}
	}
	if len(identifiers) == 0 {
		identifiers = append(identifiers, fmt.Sprintf("%s%d", catalogDocumentPrefixConstant, lineNumber))
	}
	return identifiers
}

// catalogDescription folds synonyms into the searchable description text.
func catalogDescription(entry CatalogEntry) string {
	parts := make([]string, 0, len(entry.Synonyms)+1)
	for _, synonym := range entry.Synonyms {
		trimmedSynonym := strings.TrimSpace(synonym)
		if len(trimmedSynonym) > 0 {
			parts = append(parts, trimmedSynonym)
		}
	}
	if description := strings.TrimSpace(entry.Description); len(description) > 0 {
		parts = append(parts, description)
	}
	return strings.Join(parts, " ")
}

// storedSignificance carries a stored ClinVar significance forward when a
// catalog entry replaces that variant's search document without one.
func (store *Store) storedSignificance(variantKey string) string {
	var significance string
	_ = store.database.View(func(transaction *bbolt.Tx) error {
		storedValue := transaction.Bucket([]byte(clinvarBucketNameConstant)).Get([]byte(variantKey))
		if storedValue == nil {
			return nil
		}
		var record ClinVarRecord
		if decodeError := json.Unmarshal(storedValue, &record); decodeError == nil {
			significance = record.ClinicalSignificance
		}
		return nil
	})
	return significance
}
