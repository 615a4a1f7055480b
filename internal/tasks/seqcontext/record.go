// Package seqcontext extracts reference and alternate sequence windows
// around each variant and streams them into a context artifact for the
// embedding stage.
package seqcontext

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	contextFilePermissionsConstant      = 0o644
	contextDirectoryPermissionsConstant = 0o755
	createContextsTemplateConstant      = "create contexts file %s: %w"
	encodeContextTemplateConstant       = "encode context for %s: %w"
	openContextsTemplateConstant        = "open contexts file %s: %w"
	decodeContextTemplateConstant       = "decode contexts file %s line %d: %w"
)

// ContextRecord pairs a variant with its reference and alternate sequence
// windows.
type ContextRecord struct {
	VariantIdentifier string `json:"variant_id"`
	Chromosome        string `json:"chrom"`
	Position          int    `json:"pos"`
	Reference         string `json:"ref"`
	Alternate         string `json:"alt"`
	Info              string `json:"info"`
	ReferenceSequence string `json:"ref_sequence"`
	AlternateSequence string `json:"alt_sequence"`
	WindowSize        int    `json:"window_size"`
}

// WriteContexts streams records into a JSON-lines file, one record per line.
func WriteContexts(path string, records []ContextRecord) error {
	if directoryError := os.MkdirAll(filepath.Dir(path), contextDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createContextsTemplateConstant, path, directoryError)
	}
	contextsFile, createError := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, contextFilePermissionsConstant)
	if createError != nil {
		return fmt.Errorf(createContextsTemplateConstant, path, createError)
	}
	defer contextsFile.Close()

	destination := bufio.NewWriter(contextsFile)
	for _, record := range records {
		encodedRecord, encodeError := json.Marshal(record)
		if encodeError != nil {
			return fmt.Errorf(encodeContextTemplateConstant, record.VariantIdentifier, encodeError)
		}
		if _, writeError := destination.Write(append(encodedRecord, '\n')); writeError != nil {
			return fmt.Errorf(createContextsTemplateConstant, path, writeError)
		}
	}
	return destination.Flush()
}

// ReadContexts loads every record from a JSON-lines context file.
func ReadContexts(path string) ([]ContextRecord, error) {
	contextsFile, openError := os.Open(path)
	if openError != nil {
		return nil, fmt.Errorf(openContextsTemplateConstant, path, openError)
	}
	defer contextsFile.Close()

	source := bufio.NewReader(contextsFile)
	records := []ContextRecord{}
	lineNumber := 0
	for {
		line, readError := source.ReadString('\n')
		if len(strings.TrimSpace(line)) > 0 {
			lineNumber++
			var record ContextRecord
			if decodeError := json.Unmarshal([]byte(line), &record); decodeError != nil {
				return nil, fmt.Errorf(decodeContextTemplateConstant, path, lineNumber, decodeError)
			}
			records = append(records, record)
		}
		if errors.Is(readError, io.EOF) {
			return records, nil
		}
		if readError != nil {
			return nil, fmt.Errorf(openContextsTemplateConstant, path, readError)
		}
	}
}
