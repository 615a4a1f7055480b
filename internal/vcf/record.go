// Package vcf reads and writes the tab-separated variant records the
// analysis pipeline consumes. It handles the VCF body columns and typed
// INFO fields; header lines other than the fixed ones written by Writer
// are skipped on read.
package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	missingValuePlaceholderConstant   = "."
	infoFieldSeparatorConstant        = ";"
	infoKeyValueSeparatorConstant     = "="
	columnSeparatorConstant           = "\t"
	alleleFrequencyInfoKeyConstant    = "AF"
	frequencyListSeparatorConstant    = ","
	minimumColumnCountConstant        = 8
	malformedPositionTemplateConstant = "parse variant position %q: %w"
)

// Record is one variant row from a VCF body.
type Record struct {
	Chromosome   string
	Position     int
	Identifier   string
	Reference    string
	Alternate    string
	Quality      float64
	FilterStatus string
	Info         Info
}

// DisplayIdentifier returns the variant identifier, falling back to
// chromosome:position when the ID column holds the missing placeholder.
func (record Record) DisplayIdentifier() string {
	if record.Identifier == missingValuePlaceholderConstant || len(record.Identifier) == 0 {
		return fmt.Sprintf("%s:%d", record.Chromosome, record.Position)
	}
	return record.Identifier
}

// Info is a parsed INFO column. Field order is preserved so rewritten
// records keep their original field sequence.
type Info struct {
	orderedKeys []string
	fieldValues map[string]string
	fieldFlags  map[string]bool
}

// ParseInfo splits a raw INFO column into keyed values and bare flags.
func ParseInfo(rawInfo string) Info {
	parsedInfo := Info{fieldValues: map[string]string{}, fieldFlags: map[string]bool{}}
	for _, infoField := range strings.Split(rawInfo, infoFieldSeparatorConstant) {
		if len(infoField) == 0 {
			continue
		}
		if separatorIndex := strings.Index(infoField, infoKeyValueSeparatorConstant); separatorIndex >= 0 {
			fieldKey := infoField[:separatorIndex]
			parsedInfo.orderedKeys = append(parsedInfo.orderedKeys, fieldKey)
			parsedInfo.fieldValues[fieldKey] = infoField[separatorIndex+1:]
			continue
		}
		parsedInfo.orderedKeys = append(parsedInfo.orderedKeys, infoField)
		parsedInfo.fieldFlags[infoField] = true
	}
	return parsedInfo
}

// Value returns the value stored for a keyed INFO field.
func (info Info) Value(fieldKey string) (string, bool) {
	fieldValue, exists := info.fieldValues[fieldKey]
	return fieldValue, exists
}

// Flag reports whether the INFO column carries the named bare flag.
func (info Info) Flag(fieldKey string) bool {
	return info.fieldFlags[fieldKey]
}

// MaximumAlleleFrequency reads the AF annotation, taking the highest
// value across alleles for multi-allelic records. Missing or malformed
// annotations count as zero.
func (info Info) MaximumAlleleFrequency() float64 {
	rawValue, found := info.Value(alleleFrequencyInfoKeyConstant)
	if !found || len(rawValue) == 0 {
		return 0
	}

	highestFrequency := 0.0
	for _, part := range strings.Split(rawValue, frequencyListSeparatorConstant) {
		trimmedPart := strings.TrimSpace(part)
		if len(trimmedPart) == 0 {
			continue
		}
		parsedFrequency, parseError := strconv.ParseFloat(trimmedPart, 64)
		if parseError != nil {
			return 0
		}
		if parsedFrequency > highestFrequency {
			highestFrequency = parsedFrequency
		}
	}
	return highestFrequency
}

// Map renders the INFO fields as a generic map, with keyed fields as
// strings and bare flags as true.
func (info Info) Map() map[string]any {
	rendered := make(map[string]any, len(info.orderedKeys))
	for _, fieldKey := range info.orderedKeys {
		if fieldValue, exists := info.fieldValues[fieldKey]; exists {
			rendered[fieldKey] = fieldValue
			continue
		}
		rendered[fieldKey] = true
	}
	return rendered
}

// String renders the INFO fields back into column form, keeping the
// original field order.
func (info Info) String() string {
	if len(info.orderedKeys) == 0 {
		return missingValuePlaceholderConstant
	}
	renderedFields := make([]string, 0, len(info.orderedKeys))
	for _, fieldKey := range info.orderedKeys {
		if fieldValue, exists := info.fieldValues[fieldKey]; exists {
			renderedFields = append(renderedFields, fieldKey+infoKeyValueSeparatorConstant+fieldValue)
			continue
		}
		renderedFields = append(renderedFields, fieldKey)
	}
	return strings.Join(renderedFields, infoFieldSeparatorConstant)
}

// ParseRecord parses one VCF body line. Lines with fewer than eight
// columns are not records; callers are expected to skip them.
func ParseRecord(line string) (Record, error) {
	columns := strings.Split(strings.TrimRight(line, "\r\n"), columnSeparatorConstant)
	if len(columns) < minimumColumnCountConstant {
		return Record{}, fmt.Errorf("variant line has %d columns, need %d", len(columns), minimumColumnCountConstant)
	}

	position, positionError := strconv.Atoi(columns[1])
	if positionError != nil {
		return Record{}, fmt.Errorf(malformedPositionTemplateConstant, columns[1], positionError)
	}

	quality := 0.0
	if columns[5] != missingValuePlaceholderConstant {
		parsedQuality, qualityError := strconv.ParseFloat(columns[5], 64)
		if qualityError == nil {
			quality = parsedQuality
		}
	}

	return Record{
		Chromosome:   columns[0],
		Position:     position,
		Identifier:   columns[2],
		Reference:    columns[3],
		Alternate:    columns[4],
		Quality:      quality,
		FilterStatus: columns[6],
		Info:         ParseInfo(columns[7]),
	}, nil
}
