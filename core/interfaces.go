package core

import (
	"context"
	"time"
)

// Encoder serialises a rasterized Frame to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, f *Frame, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality         int  // JPEG quality 1-100; 0 = encoder default
	TIFFDeflate     bool // deflate-compress TIFF output
	PNGCompressBest bool
}

// Sink persists encoded output bytes.  Implementations live in
// adapters/storage/.
type Sink interface {
	Put(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(stepName string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps Format values to Encoder implementations.
type Registry interface {
	EncoderFor(format Format) (Encoder, bool)
	RegisterEncoder(format Format, e Encoder)
}
