package core

import (
	"context"
	"image"
	"time"
)

// RawPayload is the encoded body of a fetched image together with the
// content type the origin declared for it. ContentType may be empty when the
// origin sent none; dispatch treats that the same as an unknown type.
type RawPayload struct {
	Bytes       []byte
	ContentType string
	// Source is the identifier the payload was fetched for; diagnostics only.
	Source string
}

// Metadata holds dimensions and size information gathered while processing.
type Metadata struct {
	Width       int
	Height      int
	ContentType string
	SizeBytes   int64
}

// ImageData is the in-memory representation passed through a pipeline.
// Payload holds encoded input bytes; Image holds the decoded intermediate;
// Bitmap holds the final square RGBA8 output once produced.
type ImageData struct {
	Payload RawPayload

	// Decoded pixel buffer — populated by decode/rasterize steps.
	Image image.Image

	// Final processed output. Square, RGBA8, masked.
	Bitmap *Bitmap

	// TargetSize is the side length every pipeline output must have.
	TargetSize int

	// Metadata updated as steps run.
	Meta Metadata

	// RequestID correlates pipeline events with the fetch that spawned them.
	RequestID string
}

// TextureHandle is an opaque value owned by the UI layer's rendering
// context. The fetcher never inspects it; it only carries it from the
// registration callback to the pending result.
type TextureHandle any

// Step is the fundamental pipeline building block. Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}

// task is a unit of background work for the fetcher's worker pool.
// Tasks carry no result channel: disk loads resolve their pending result
// directly and cache persists are fire-and-forget.
type task struct {
	id   string
	kind string // "disk.load" or "cache.persist"
	ctx  context.Context //nolint:containedctx // intentional for async tasks
	run  func(ctx context.Context)
}
