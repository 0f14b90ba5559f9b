package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode   Category = "decode"
	CategoryNetwork  Category = "network"
	CategoryStorage  Category = "storage"
	CategoryPipeline Category = "pipeline"
	CategoryInput    Category = "input"
	CategoryConfig   Category = "config"
)

// FetchError is the structured error type used throughout the module.
type FetchError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// New creates a FetchError.
func New(category Category, op string, err error) *FetchError {
	return &FetchError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category == cat
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrMalformedRaster        = errors.New("malformed raster image")
	ErrMalformedVector        = errors.New("malformed vector image")
	ErrEmptyInput             = errors.New("empty input")
	ErrInvalidTargetSize      = errors.New("invalid target size")
	ErrWorkerPoolFull         = errors.New("worker pool queue full")
	ErrMissingCacheDir        = errors.New("cache directory not configured")
)
