package utils

import "io"

type flushableDestination interface {
	Flush() error
}

// FlushingWriter forwards writes to the wrapped destination and flushes it
// after every successful write when the destination supports flushing.
type FlushingWriter struct {
	destination io.Writer
}

// NewFlushingWriter wraps the provided destination in a FlushingWriter.
func NewFlushingWriter(destination io.Writer) *FlushingWriter {
	return &FlushingWriter{destination: destination}
}

// Write forwards the payload and flushes the destination when supported.
func (writer *FlushingWriter) Write(payload []byte) (int, error) {
	bytesWritten, writeError := writer.destination.Write(payload)
	if writeError != nil {
		return bytesWritten, writeError
	}
	if flushable, supportsFlush := writer.destination.(flushableDestination); supportsFlush {
		if flushError := flushable.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}
	return bytesWritten, nil
}
