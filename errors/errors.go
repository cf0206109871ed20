package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode    Category = "decode"
	CategoryNormalize Category = "normalize"
	CategoryAdjust    Category = "adjust"
	CategoryEncode    Category = "encode"
	CategoryStorage   Category = "storage"
	CategoryConfig    Category = "config"
	CategoryInput     Category = "input"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  Returns nil when err is nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Sentinel errors for the per-file failure taxonomy.
var (
	// ErrUnreadableContainer: the source file could not be parsed as a FITS
	// container (bad magic, corrupt header, truncated data, I/O error).
	ErrUnreadableContainer = errors.New("unreadable container")

	// ErrNoImageData: the container parsed but the primary data unit carries
	// no array.
	ErrNoImageData = errors.New("no image data in primary data unit")

	// ErrUnsupportedDimensionality: the pixel array is neither 2-D nor 3-D
	// and cannot be rendered.
	ErrUnsupportedDimensionality = errors.New("unsupported array dimensionality")

	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrEmptyInput        = errors.New("empty input")
)
