package core

import (
	"context"
	"image"
	"strings"
	"time"
)

// Format identifies an output raster format.
type Format string

const (
	FormatPNG     Format = "png"
	FormatTIFF    Format = "tiff"
	FormatJPG     Format = "jpg"
	FormatBMP     Format = "bmp"
	FormatUnknown Format = "unknown"
)

// ParseFormat maps user input (case-insensitive, common aliases) to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return FormatPNG
	case "tiff", "tif":
		return FormatTIFF
	case "jpg", "jpeg":
		return FormatJPG
	case "bmp":
		return FormatBMP
	}
	return FormatUnknown
}

// Extension returns the lower-cased canonical file extension for f,
// including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// RawArray is the primary data unit of a container file: an N-dimensional
// numeric array of samples.  Samples are held as float64 regardless of the
// container's storage type so the normalizer is dtype-agnostic; Dims follows
// row-major order with the fastest-varying container axis last.
type RawArray struct {
	Dims    []int
	Samples []float64
	BitPix  int // container storage type: 8/16/32/64 int, -32/-64 float
}

// Len returns the total sample count (the product of Dims).
func (r *RawArray) Len() int {
	if len(r.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range r.Dims {
		n *= d
	}
	return n
}

// Rank returns the number of axes.
func (r *RawArray) Rank() int { return len(r.Dims) }

// DisplayImage is a display-ready pixel array: unsigned 8-bit samples in a
// 2-D (grayscale) or 3-D (multi-channel, channels on the trailing axis)
// layout.
type DisplayImage struct {
	Dims []int
	Pix  []uint8
}

// Rank returns the number of axes (2 or 3 by construction).
func (d *DisplayImage) Rank() int { return len(d.Dims) }

// Width returns the pixel width (second axis).
func (d *DisplayImage) Width() int { return d.Dims[1] }

// Height returns the pixel height (first axis).
func (d *DisplayImage) Height() int { return d.Dims[0] }

// Channels returns the channel count: 1 for 2-D data, the trailing axis size
// for 3-D data.
func (d *DisplayImage) Channels() int {
	if len(d.Dims) == 3 {
		return d.Dims[2]
	}
	return 1
}

// AdjustmentSettings is an immutable per-request tone/geometry tuple.
// Brightness and contrast are multiplicative factors where 1.0 is identity;
// rotation is counter-clockwise degrees where 0 is identity.
type AdjustmentSettings struct {
	Brightness float64
	Contrast   float64
	Rotation   float64
}

// DefaultAdjustments returns the identity settings.
func DefaultAdjustments() AdjustmentSettings {
	return AdjustmentSettings{Brightness: 1.0, Contrast: 1.0, Rotation: 0}
}

// IsIdentity reports whether applying s would leave an image unchanged.
func (s AdjustmentSettings) IsIdentity() bool {
	return s.Brightness == 1.0 && s.Contrast == 1.0 && s.Rotation == 0
}

// ConversionRequest describes one file conversion.  Requests are value
// snapshots: the pipeline never reads ambient state.
type ConversionRequest struct {
	SourcePath    string
	OutputFormat  Format
	AutoNormalise bool
	Settings      AdjustmentSettings
}

// ConversionResult is the per-file outcome: a written output path on
// success, or the failure cause.  A batch with partial failures is not
// itself an error.
type ConversionResult struct {
	SourcePath string
	OutputPath string
	Err        error

	// Observability.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// Ok reports whether the conversion succeeded.
func (r ConversionResult) Ok() bool { return r.Err == nil }

// Metadata describes the frame as it moves through the pipeline.
type Metadata struct {
	Width     int
	Height    int
	Channels  int
	BitPix    int
	SizeBytes int64
}

// Frame is the in-memory representation passed through a pipeline run for
// one file.  Stages populate it progressively: Raw after decode, Display
// after normalization, Image once rasterized, Data after encode.
type Frame struct {
	SourcePath string
	Format     Format
	Settings   AdjustmentSettings

	Raw     *RawArray
	Display *DisplayImage
	Image   image.Image
	Data    []byte // encoded bytes
	OutPath string // derived output path, set by the write stage

	Meta Metadata
}

// Step is the fundamental pipeline building block.  Each Step transforms a
// *Frame and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, f *Frame) (*Frame, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, f *Frame)
	AfterStep(ctx context.Context, stepName string, f *Frame, d time.Duration, err error)
}
