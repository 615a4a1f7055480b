package vcf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	gzipExtensionConstant       = ".gz"
	headerPrefixConstant        = "#"
	openFileTemplateConstant    = "open variants file %s: %w"
	openGzipTemplateConstant    = "open gzip variants file %s: %w"
	readLineTemplateConstant    = "read variants file line %d: %w"
	parseRecordTemplateConstant = "variants file line %d: %w"
)

// Reader iterates the variant records of a VCF stream, skipping header
// lines and lines too short to be records.
type Reader struct {
	source     *bufio.Reader
	lineNumber int
}

// NewReader wraps an already-open VCF stream.
func NewReader(source io.Reader) *Reader {
	return &Reader{source: bufio.NewReader(source)}
}

// Read returns the next variant record, or io.EOF when the stream ends.
func (reader *Reader) Read() (Record, error) {
	for {
		line, readError := reader.source.ReadString('\n')
		if len(line) == 0 && readError != nil {
			if readError == io.EOF {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf(readLineTemplateConstant, reader.lineNumber+1, readError)
		}
		reader.lineNumber++

		trimmedLine := strings.TrimRight(line, "\r\n")
		if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, headerPrefixConstant) {
			if readError == io.EOF {
				return Record{}, io.EOF
			}
			continue
		}
		if strings.Count(trimmedLine, columnSeparatorConstant) < minimumColumnCountConstant-1 {
			if readError == io.EOF {
				return Record{}, io.EOF
			}
			continue
		}

		parsedRecord, parseError := ParseRecord(trimmedLine)
		if parseError != nil {
			return Record{}, fmt.Errorf(parseRecordTemplateConstant, reader.lineNumber, parseError)
		}
		return parsedRecord, nil
	}
}

// ReadAll drains the stream into a slice of records.
func (reader *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		parsedRecord, readError := reader.Read()
		if readError == io.EOF {
			return records, nil
		}
		if readError != nil {
			return nil, readError
		}
		records = append(records, parsedRecord)
	}
}

// File is an open VCF file, transparently decompressed when the path
// carries a .gz extension.
type File struct {
	*Reader
	closers []io.Closer
}

// Open opens a VCF file for reading.
func Open(path string) (*File, error) {
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return nil, fmt.Errorf(openFileTemplateConstant, path, openError)
	}

	openedFile := &File{closers: []io.Closer{fileHandle}}
	if strings.HasSuffix(path, gzipExtensionConstant) {
		gzipReader, gzipError := gzip.NewReader(fileHandle)
		if gzipError != nil {
			fileHandle.Close()
			return nil, fmt.Errorf(openGzipTemplateConstant, path, gzipError)
		}
		openedFile.closers = append([]io.Closer{gzipReader}, openedFile.closers...)
		openedFile.Reader = NewReader(gzipReader)
		return openedFile, nil
	}

	openedFile.Reader = NewReader(fileHandle)
	return openedFile, nil
}

// Close releases the underlying file handles.
func (file *File) Close() error {
	var firstError error
	for _, closer := range file.closers {
		if closeError := closer.Close(); closeError != nil && firstError == nil {
			firstError = closeError
		}
	}
	return firstError
}

// ReadFile loads every record from a VCF file.
func ReadFile(path string) ([]Record, error) {
	openedFile, openError := Open(path)
	if openError != nil {
		return nil, openError
	}
	defer openedFile.Close()
	return openedFile.ReadAll()
}
