// Package fasta extracts variant-centered sequence windows from an indexed
// reference genome. A sidecar .fai index is used when present and built by
// scanning the reference when it is not.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	indexExtensionConstant              = ".fai"
	indexColumnCountConstant            = 5
	sequenceHeaderPrefixConstant        = ">"
	malformedIndexLineTemplateConstant  = "reference index line %d: expected %d columns, found %d"
	malformedIndexFieldTemplateConstant = "reference index line %d: parse %s: %w"
	raggedSequenceLineTemplateConstant  = "reference sequence %s: line length changes mid-record"
)

// indexEntry locates one sequence inside the reference file, in the layout
// a samtools faidx index describes.
type indexEntry struct {
	name         string
	length       int
	byteOffset   int64
	basesPerLine int
	bytesPerLine int
}

// parseIndex reads a .fai sidecar index.
func parseIndex(source io.Reader) (map[string]indexEntry, []string, error) {
	entries := map[string]indexEntry{}
	var orderedNames []string

	lineNumber := 0
	scanner := bufio.NewScanner(source)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}

		columns := strings.Split(line, "\t")
		if len(columns) < indexColumnCountConstant {
			return nil, nil, fmt.Errorf(malformedIndexLineTemplateConstant, lineNumber, indexColumnCountConstant, len(columns))
		}

		length, lengthError := strconv.Atoi(columns[1])
		if lengthError != nil {
			return nil, nil, fmt.Errorf(malformedIndexFieldTemplateConstant, lineNumber, "length", lengthError)
		}
		byteOffset, offsetError := strconv.ParseInt(columns[2], 10, 64)
		if offsetError != nil {
			return nil, nil, fmt.Errorf(malformedIndexFieldTemplateConstant, lineNumber, "offset", offsetError)
		}
		basesPerLine, basesError := strconv.Atoi(columns[3])
		if basesError != nil {
			return nil, nil, fmt.Errorf(malformedIndexFieldTemplateConstant, lineNumber, "line bases", basesError)
		}
		bytesPerLine, bytesError := strconv.Atoi(columns[4])
		if bytesError != nil {
			return nil, nil, fmt.Errorf(malformedIndexFieldTemplateConstant, lineNumber, "line width", bytesError)
		}

		entry := indexEntry{
			name:         columns[0],
			length:       length,
			byteOffset:   byteOffset,
			basesPerLine: basesPerLine,
			bytesPerLine: bytesPerLine,
		}
		entries[entry.name] = entry
		orderedNames = append(orderedNames, entry.name)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, nil, scanError
	}
	return entries, orderedNames, nil
}

// buildIndex derives index entries by scanning a FASTA stream. Only the
// final sequence line of each record may be shorter than the others.
func buildIndex(source io.Reader) (map[string]indexEntry, []string, error) {
	entries := map[string]indexEntry{}
	var orderedNames []string

	reader := bufio.NewReader(source)
	var currentEntry *indexEntry
	var previousLineBases int
	byteOffset := int64(0)

	finishEntry := func() {
		if currentEntry == nil {
			return
		}
		entries[currentEntry.name] = *currentEntry
		orderedNames = append(orderedNames, currentEntry.name)
		currentEntry = nil
	}

	for {
		line, readError := reader.ReadString('\n')
		lineBytes := len(line)
		trimmedLine := strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(trimmedLine, sequenceHeaderPrefixConstant) {
			finishEntry()
			sequenceName := strings.Fields(trimmedLine[1:])
			if len(sequenceName) > 0 {
				currentEntry = &indexEntry{
					name:       sequenceName[0],
					byteOffset: byteOffset + int64(lineBytes),
				}
				previousLineBases = 0
			}
		} else if currentEntry != nil && len(trimmedLine) > 0 {
			if currentEntry.basesPerLine == 0 {
				currentEntry.basesPerLine = len(trimmedLine)
				currentEntry.bytesPerLine = lineBytes
			} else if previousLineBases != currentEntry.basesPerLine {
				return nil, nil, fmt.Errorf(raggedSequenceLineTemplateConstant, currentEntry.name)
			}
			previousLineBases = len(trimmedLine)
			currentEntry.length += len(trimmedLine)
		}

		byteOffset += int64(lineBytes)
		if readError == io.EOF {
			finishEntry()
			return entries, orderedNames, nil
		}
		if readError != nil {
			return nil, nil, readError
		}
	}
}
