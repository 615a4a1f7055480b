package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	fileFormatHeaderConstant             = "##fileformat=VCFv4.2"
	columnHeaderConstant                 = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"
	createFileTemplateConstant           = "create variants file %s: %w"
	writeRecordTemplateConstant          = "write variant record: %w"
	artifactDirectoryPermissionsConstant = 0o755
)

// Writer renders variant records back into VCF form.
type Writer struct {
	destination *bufio.Writer
}

// NewWriter wraps an output stream.
func NewWriter(destination io.Writer) *Writer {
	return &Writer{destination: bufio.NewWriter(destination)}
}

// WriteHeader emits the file format line and the column header.
func (writer *Writer) WriteHeader() error {
	if _, writeError := fmt.Fprintln(writer.destination, fileFormatHeaderConstant); writeError != nil {
		return fmt.Errorf(writeRecordTemplateConstant, writeError)
	}
	if _, writeError := fmt.Fprintln(writer.destination, columnHeaderConstant); writeError != nil {
		return fmt.Errorf(writeRecordTemplateConstant, writeError)
	}
	return nil
}

// Write emits one variant record.
func (writer *Writer) Write(record Record) error {
	_, writeError := fmt.Fprintf(
		writer.destination,
		"%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
		record.Chromosome,
		record.Position,
		record.Identifier,
		record.Reference,
		record.Alternate,
		strconv.FormatFloat(record.Quality, 'g', -1, 64),
		record.FilterStatus,
		record.Info.String(),
	)
	if writeError != nil {
		return fmt.Errorf(writeRecordTemplateConstant, writeError)
	}
	return nil
}

// Flush commits buffered output to the underlying stream.
func (writer *Writer) Flush() error {
	return writer.destination.Flush()
}

// WriteFile writes the provided records, with header, to a new VCF file,
// creating parent directories as needed.
func WriteFile(path string, records []Record) error {
	if directoryError := os.MkdirAll(filepath.Dir(path), artifactDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createFileTemplateConstant, path, directoryError)
	}
	fileHandle, createError := os.Create(path)
	if createError != nil {
		return fmt.Errorf(createFileTemplateConstant, path, createError)
	}
	defer fileHandle.Close()

	writer := NewWriter(fileHandle)
	if headerError := writer.WriteHeader(); headerError != nil {
		return headerError
	}
	for _, record := range records {
		if writeError := writer.Write(record); writeError != nil {
			return writeError
		}
	}
	return writer.Flush()
}
