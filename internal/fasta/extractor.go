package fasta

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	chromosomePrefixConstant           = "chr"
	openReferenceTemplateConstant      = "open reference genome %s: %w"
	readReferenceTemplateConstant      = "read reference genome %s: %w"
	unknownChromosomeTemplateConstant  = "%w: %s"
	invalidPositionTemplateConstant    = "%w: %s:%d"
	referenceMismatchTemplateConstant  = "%w at %s:%d: variants file says %s, reference genome says %s"
	referenceTruncatedTemplateConstant = "reference allele at %s:%d extends past the end of %s"
)

// ErrUnknownChromosome indicates a chromosome absent from the reference,
// under its own name and with the chr prefix toggled.
var ErrUnknownChromosome = errors.New("chromosome not in reference genome")

// ErrInvalidPosition indicates a variant position before the first base.
var ErrInvalidPosition = errors.New("variant position must be positive")

// ErrReferenceMismatch indicates the reference genome disagrees with a
// variant's declared reference allele.
var ErrReferenceMismatch = errors.New("reference allele mismatch")

// Window is a variant-centered slice of the reference, with the variant's
// alternate allele spliced into a second copy.
type Window struct {
	ReferenceSequence string
	AlternateSequence string
	// ReferenceOffset is the index of the reference allele inside
	// ReferenceSequence. It equals the window size except near the start
	// of a chromosome, where the left flank is truncated.
	ReferenceOffset int
}

// WindowSource provides variant-centered sequence windows.
type WindowSource interface {
	Window(chromosome string, position int, referenceAllele string, alternateAllele string, windowSize int) (Window, error)
}

// Extractor retrieves sequences from an indexed FASTA reference genome.
type Extractor struct {
	referencePath string
	referenceFile *os.File
	entries       map[string]indexEntry
	orderedNames  []string
}

// Open prepares a reference genome for window extraction, loading the
// sidecar .fai index when present and scanning the file when it is not.
func Open(referencePath string) (*Extractor, error) {
	referenceFile, openError := os.Open(referencePath)
	if openError != nil {
		return nil, fmt.Errorf(openReferenceTemplateConstant, referencePath, openError)
	}

	extractor := &Extractor{referencePath: referencePath, referenceFile: referenceFile}

	indexFile, indexOpenError := os.Open(referencePath + indexExtensionConstant)
	if indexOpenError == nil {
		defer indexFile.Close()
		entries, orderedNames, parseError := parseIndex(indexFile)
		if parseError != nil {
			referenceFile.Close()
			return nil, fmt.Errorf(readReferenceTemplateConstant, referencePath, parseError)
		}
		extractor.entries = entries
		extractor.orderedNames = orderedNames
		return extractor, nil
	}

	entries, orderedNames, buildError := buildIndex(referenceFile)
	if buildError != nil {
		referenceFile.Close()
		return nil, fmt.Errorf(readReferenceTemplateConstant, referencePath, buildError)
	}
	extractor.entries = entries
	extractor.orderedNames = orderedNames
	return extractor, nil
}

// Close releases the underlying reference file.
func (extractor *Extractor) Close() error {
	return extractor.referenceFile.Close()
}

// Chromosomes lists the reference sequences in file order.
func (extractor *Extractor) Chromosomes() []string {
	return append([]string{}, extractor.orderedNames...)
}

// normalizeChromosome maps a variant's chromosome name onto the reference
// naming scheme, toggling the chr prefix when the literal name is absent.
func (extractor *Extractor) normalizeChromosome(chromosome string) string {
	if _, exists := extractor.entries[chromosome]; exists {
		return chromosome
	}
	toggledName := chromosomePrefixConstant + chromosome
	if strings.HasPrefix(chromosome, chromosomePrefixConstant) {
		toggledName = strings.TrimPrefix(chromosome, chromosomePrefixConstant)
	}
	if _, exists := extractor.entries[toggledName]; exists {
		return toggledName
	}
	return chromosome
}

// Sequence returns the uppercased bases of a zero-based half-open interval,
// clamped to the chromosome bounds.
func (extractor *Extractor) Sequence(chromosome string, intervalStart int, intervalEnd int) (string, error) {
	entry, exists := extractor.entries[extractor.normalizeChromosome(chromosome)]
	if !exists {
		return "", fmt.Errorf(unknownChromosomeTemplateConstant, ErrUnknownChromosome, chromosome)
	}

	if intervalStart < 0 {
		intervalStart = 0
	}
	if intervalEnd > entry.length {
		intervalEnd = entry.length
	}
	if intervalStart >= intervalEnd || entry.basesPerLine == 0 {
		return "", nil
	}

	fileStart := entry.byteOffset + int64(intervalStart/entry.basesPerLine)*int64(entry.bytesPerLine) + int64(intervalStart%entry.basesPerLine)
	lastBase := intervalEnd - 1
	fileEnd := entry.byteOffset + int64(lastBase/entry.basesPerLine)*int64(entry.bytesPerLine) + int64(lastBase%entry.basesPerLine) + 1

	rawBytes := make([]byte, fileEnd-fileStart)
	if _, readError := extractor.referenceFile.ReadAt(rawBytes, fileStart); readError != nil {
		return "", fmt.Errorf(readReferenceTemplateConstant, extractor.referencePath, readError)
	}

	bases := make([]byte, 0, intervalEnd-intervalStart)
	for _, rawByte := range rawBytes {
		if rawByte == '\n' || rawByte == '\r' {
			continue
		}
		bases = append(bases, rawByte)
	}
	return strings.ToUpper(string(bases)), nil
}

// Window extracts the sequence window around a variant and splices the
// alternate allele into a second copy. The window covers windowSize bases
// on each side of the reference allele, truncated at chromosome bounds.
func (extractor *Extractor) Window(chromosome string, position int, referenceAllele string, alternateAllele string, windowSize int) (Window, error) {
	if position < 1 {
		return Window{}, fmt.Errorf(invalidPositionTemplateConstant, ErrInvalidPosition, chromosome, position)
	}

	intervalStart := position - windowSize - 1
	if intervalStart < 0 {
		intervalStart = 0
	}
	intervalEnd := position + len(referenceAllele) + windowSize - 1

	sequence, sequenceError := extractor.Sequence(chromosome, intervalStart, intervalEnd)
	if sequenceError != nil {
		return Window{}, sequenceError
	}

	referenceOffset := position - 1 - intervalStart
	if referenceOffset+len(referenceAllele) > len(sequence) {
		return Window{}, fmt.Errorf(referenceTruncatedTemplateConstant, chromosome, position, chromosome)
	}

	extractedAllele := sequence[referenceOffset : referenceOffset+len(referenceAllele)]
	if !strings.EqualFold(extractedAllele, referenceAllele) {
		return Window{}, fmt.Errorf(
			referenceMismatchTemplateConstant,
			ErrReferenceMismatch, chromosome, position, referenceAllele, extractedAllele,
		)
	}

	return Window{
		ReferenceSequence: sequence,
		AlternateSequence: sequence[:referenceOffset] + strings.ToUpper(alternateAllele) + sequence[referenceOffset+len(referenceAllele):],
		ReferenceOffset:   referenceOffset,
	}, nil
}

// MatchesReference reports whether the reference genome carries the
// variant's declared reference allele at its position.
func (extractor *Extractor) MatchesReference(chromosome string, position int, referenceAllele string) (bool, error) {
	if position < 1 {
		return false, fmt.Errorf(invalidPositionTemplateConstant, ErrInvalidPosition, chromosome, position)
	}
	extractedAllele, sequenceError := extractor.Sequence(chromosome, position-1, position-1+len(referenceAllele))
	if sequenceError != nil {
		return false, sequenceError
	}
	return strings.EqualFold(extractedAllele, referenceAllele), nil
}
