// Package embedding turns sequence contexts into Genos embedding pairs and
// the distance metrics between them.
package embedding

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tyemirov/genopipe/internal/genos"
)

const (
	recordFilePermissionsConstant      = 0o644
	recordDirectoryPermissionsConstant = 0o755
	createRecordsTemplateConstant      = "create embeddings file %s: %w"
	encodeRecordTemplateConstant       = "encode embedding for %s: %w"
	openRecordsTemplateConstant        = "open embeddings file %s: %w"
	decodeRecordTemplateConstant       = "decode embeddings file %s line %d: %w"
)

// VariantEmbeddingRecord pairs a variant's reference and alternate
// embeddings with the distance metrics between them.
type VariantEmbeddingRecord struct {
	VariantIdentifier  string       `json:"variant_id"`
	Chromosome         string       `json:"chrom"`
	Position           int          `json:"pos"`
	Reference          string       `json:"ref"`
	Alternate          string       `json:"alt"`
	ReferenceEmbedding genos.Vector `json:"ref_embedding"`
	AlternateEmbedding genos.Vector `json:"alt_embedding"`
	genos.EffectScores
}

// WriteRecords streams records into a JSON-lines file, one record per line.
func WriteRecords(path string, records []VariantEmbeddingRecord) error {
	if directoryError := os.MkdirAll(filepath.Dir(path), recordDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createRecordsTemplateConstant, path, directoryError)
	}
	recordsFile, createError := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, recordFilePermissionsConstant)
	if createError != nil {
		return fmt.Errorf(createRecordsTemplateConstant, path, createError)
	}
	defer recordsFile.Close()

	destination := bufio.NewWriter(recordsFile)
	for _, record := range records {
		encodedRecord, encodeError := json.Marshal(record)
		if encodeError != nil {
			return fmt.Errorf(encodeRecordTemplateConstant, record.VariantIdentifier, encodeError)
		}
		if _, writeError := destination.Write(append(encodedRecord, '\n')); writeError != nil {
			return fmt.Errorf(createRecordsTemplateConstant, path, writeError)
		}
	}
	return destination.Flush()
}

// ReadRecords loads every record from a JSON-lines embeddings file.
func ReadRecords(path string) ([]VariantEmbeddingRecord, error) {
	recordsFile, openError := os.Open(path)
	if openError != nil {
		return nil, fmt.Errorf(openRecordsTemplateConstant, path, openError)
	}
	defer recordsFile.Close()

	source := bufio.NewReader(recordsFile)
	records := []VariantEmbeddingRecord{}
	lineNumber := 0
	for {
		line, readError := source.ReadString('\n')
		if len(strings.TrimSpace(line)) > 0 {
			lineNumber++
			var record VariantEmbeddingRecord
			if decodeError := json.Unmarshal([]byte(line), &record); decodeError != nil {
				return nil, fmt.Errorf(decodeRecordTemplateConstant, path, lineNumber, decodeError)
			}
			records = append(records, record)
		}
		if errors.Is(readError, io.EOF) {
			return records, nil
		}
		if readError != nil {
			return nil, fmt.Errorf(openRecordsTemplateConstant, path, readError)
		}
	}
}
