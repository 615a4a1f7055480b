// Package knowledge maintains the local variant knowledge base: ClinVar
// assertions keyed by locus and allele in a bolt database, with disease
// names mirrored into a bleve index so evidence retrieval can rank
// variants against a phenotype description.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.etcd.io/bbolt"
)

const (
	clinvarDatabaseFileConstant       = "clinvar.db"
	diseaseIndexDirectoryConstant     = "diseases.bleve"
	clinvarBucketNameConstant         = "clinvar"
	chromosomePrefixConstant          = "chr"
	databaseOpenTimeoutConstant       = time.Second
	databaseFilePermissionsConstant   = 0o644
	storeDirectoryPermissionsConstant = 0o755
	createStoreTemplateConstant       = "create knowledge base directory %s: %w"
	openDatabaseTemplateConstant      = "open knowledge base %s: %w"
	openIndexTemplateConstant         = "open disease index %s: %w"
	encodeRecordTemplateConstant      = "encode clinvar record %s: %w"
	decodeRecordTemplateConstant      = "decode clinvar record %s: %w"
	storeRecordTemplateConstant       = "store clinvar record %s: %w"
	indexRecordTemplateConstant       = "index disease for %s: %w"
	searchDiseasesTemplateConstant    = "search diseases: %w"
	diseaseFieldNameConstant          = "disease"
	significanceFieldNameConstant     = "significance"
	descriptionFieldNameConstant      = "description"
)

// ClinVarRecord is one ClinVar assertion about a variant.
type ClinVarRecord struct {
	Chromosome           string `json:"chrom"`
	Position             int    `json:"pos"`
	Reference            string `json:"ref"`
	Alternate            string `json:"alt"`
	VariantIdentifier    string `json:"variant_id"`
	ClinicalSignificance string `json:"clinical_significance"`
	DiseaseName          string `json:"disease_name"`
	Info                 string `json:"info"`
}

// Key returns the record's lookup key.
func (record ClinVarRecord) Key() string {
	return VariantKey(record.Chromosome, record.Position, record.Reference, record.Alternate)
}

// VariantKey builds the canonical lookup key for a variant. Chromosome
// names are stored without the chr prefix so both naming schemes find
// the same record.
func VariantKey(chromosome string, position int, referenceAllele string, alternateAllele string) string {
	normalizedChromosome := strings.TrimPrefix(chromosome, chromosomePrefixConstant)
	return fmt.Sprintf("%s:%d:%s:%s", normalizedChromosome, position, referenceAllele, alternateAllele)
}

// DiseaseMatch is one phenotype search hit.
type DiseaseMatch struct {
	VariantKey   string
	DiseaseName  string
	Significance string
	// Similarity is the hit's relevance relative to the best hit of the
	// same search, 1 for the top match.
	Similarity float64
}

type diseaseDocument struct {
	Disease      string `json:"disease"`
	Significance string `json:"significance"`
	Description  string `json:"description"`
}

// Store is an open variant knowledge base.
type Store struct {
	directory    string
	database     *bbolt.DB
	diseaseIndex bleve.Index
}

// Open opens the knowledge base under the provided directory, creating
// an empty one when nothing exists there yet.
func Open(directory string) (*Store, error) {
	if directoryError := os.MkdirAll(directory, storeDirectoryPermissionsConstant); directoryError != nil {
		return nil, fmt.Errorf(createStoreTemplateConstant, directory, directoryError)
	}

	databasePath := filepath.Join(directory, clinvarDatabaseFileConstant)
	database, databaseError := bbolt.Open(databasePath, databaseFilePermissionsConstant, &bbolt.Options{Timeout: databaseOpenTimeoutConstant})
	if databaseError != nil {
		return nil, fmt.Errorf(openDatabaseTemplateConstant, databasePath, databaseError)
	}

	bucketError := database.Update(func(transaction *bbolt.Tx) error {
		_, createError := transaction.CreateBucketIfNotExists([]byte(clinvarBucketNameConstant))
		return createError
	})
	if bucketError != nil {
		database.Close()
		return nil, fmt.Errorf(openDatabaseTemplateConstant, databasePath, bucketError)
	}

	indexPath := filepath.Join(directory, diseaseIndexDirectoryConstant)
	diseaseIndex, indexError := openDiseaseIndex(indexPath)
	if indexError != nil {
		database.Close()
		return nil, fmt.Errorf(openIndexTemplateConstant, indexPath, indexError)
	}

	return &Store{directory: directory, database: database, diseaseIndex: diseaseIndex}, nil
}

func openDiseaseIndex(indexPath string) (bleve.Index, error) {
	if _, statError := os.Stat(indexPath); os.IsNotExist(statError) {
		return bleve.New(indexPath, buildDiseaseIndexMapping())
	}
	return bleve.Open(indexPath)
}

func buildDiseaseIndexMapping() mapping.IndexMapping {
	diseaseFieldMapping := bleve.NewTextFieldMapping()
	diseaseFieldMapping.Analyzer = standard.Name

	significanceFieldMapping := bleve.NewKeywordFieldMapping()

	descriptionFieldMapping := bleve.NewTextFieldMapping()
	descriptionFieldMapping.Analyzer = standard.Name

	documentMapping := bleve.NewDocumentMapping()
	documentMapping.AddFieldMappingsAt(diseaseFieldNameConstant, diseaseFieldMapping)
	documentMapping.AddFieldMappingsAt(significanceFieldNameConstant, significanceFieldMapping)
	documentMapping.AddFieldMappingsAt(descriptionFieldNameConstant, descriptionFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = documentMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Close releases the database and the disease index.
func (store *Store) Close() error {
	indexError := store.diseaseIndex.Close()
	databaseError := store.database.Close()
	if databaseError != nil {
		return databaseError
	}
	return indexError
}

// PutBatch stores records in one transaction and mirrors their disease
// names into the search index. Later records win on duplicate keys.
func (store *Store) PutBatch(records []ClinVarRecord) error {
	if len(records) == 0 {
		return nil
	}

	storeError := store.database.Update(func(transaction *bbolt.Tx) error {
		bucket := transaction.Bucket([]byte(clinvarBucketNameConstant))
		for _, record := range records {
			encodedRecord, encodeError := json.Marshal(record)
			if encodeError != nil {
				return fmt.Errorf(encodeRecordTemplateConstant, record.Key(), encodeError)
			}
			if putError := bucket.Put([]byte(record.Key()), encodedRecord); putError != nil {
				return fmt.Errorf(storeRecordTemplateConstant, record.Key(), putError)
			}
		}
		return nil
	})
	if storeError != nil {
		return storeError
	}

	indexBatch := store.diseaseIndex.NewBatch()
	for _, record := range records {
		if len(record.DiseaseName) == 0 {
			continue
		}
		document := diseaseDocument{Disease: record.DiseaseName, Significance: record.ClinicalSignificance}
		if indexError := indexBatch.Index(record.Key(), document); indexError != nil {
			return fmt.Errorf(indexRecordTemplateConstant, record.Key(), indexError)
		}
	}
	if indexBatch.Size() == 0 {
		return nil
	}
	if batchError := store.diseaseIndex.Batch(indexBatch); batchError != nil {
		return fmt.Errorf(indexRecordTemplateConstant, records[0].Key(), batchError)
	}
	return nil
}

// Put stores a single record.
func (store *Store) Put(record ClinVarRecord) error {
	return store.PutBatch([]ClinVarRecord{record})
}

// Lookup returns the ClinVar record for a variant, reporting whether one
// exists.
func (store *Store) Lookup(chromosome string, position int, referenceAllele string, alternateAllele string) (ClinVarRecord, bool, error) {
	lookupKey := VariantKey(chromosome, position, referenceAllele, alternateAllele)

	var encodedRecord []byte
	viewError := store.database.View(func(transaction *bbolt.Tx) error {
		storedValue := transaction.Bucket([]byte(clinvarBucketNameConstant)).Get([]byte(lookupKey))
		if storedValue != nil {
			encodedRecord = append([]byte{}, storedValue...)
		}
		return nil
	})
	if viewError != nil {
		return ClinVarRecord{}, false, viewError
	}
	if encodedRecord == nil {
		return ClinVarRecord{}, false, nil
	}

	var record ClinVarRecord
	if decodeError := json.Unmarshal(encodedRecord, &record); decodeError != nil {
		return ClinVarRecord{}, false, fmt.Errorf(decodeRecordTemplateConstant, lookupKey, decodeError)
	}
	return record, true, nil
}

// Count returns the number of stored ClinVar records.
func (store *Store) Count() (int, error) {
	recordCount := 0
	viewError := store.database.View(func(transaction *bbolt.Tx) error {
		recordCount = transaction.Bucket([]byte(clinvarBucketNameConstant)).Stats().KeyN
		return nil
	})
	return recordCount, viewError
}

// SearchDiseases ranks stored disease names against a phenotype
// description. Similarities are relative to the best hit.
func (store *Store) SearchDiseases(phenotype string, limit int) ([]DiseaseMatch, error) {
	if len(strings.TrimSpace(phenotype)) == 0 || limit <= 0 {
		return nil, nil
	}

	searchRequest := bleve.NewSearchRequest(bleve.NewMatchQuery(phenotype))
	searchRequest.Size = limit
	searchRequest.Fields = []string{diseaseFieldNameConstant, significanceFieldNameConstant}

	searchResult, searchError := store.diseaseIndex.Search(searchRequest)
	if searchError != nil {
		return nil, fmt.Errorf(searchDiseasesTemplateConstant, searchError)
	}
	if len(searchResult.Hits) == 0 {
		return nil, nil
	}

	topScore := searchResult.Hits[0].Score
	matches := make([]DiseaseMatch, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		match := DiseaseMatch{VariantKey: hit.ID, Similarity: 1}
		if topScore > 0 {
			match.Similarity = hit.Score / topScore
		}
		if diseaseName, ok := hit.Fields[diseaseFieldNameConstant].(string); ok {
			match.DiseaseName = diseaseName
		}
		if significance, ok := hit.Fields[significanceFieldNameConstant].(string); ok {
			match.Significance = significance
		}
		matches = append(matches, match)
	}
	return matches, nil
}
