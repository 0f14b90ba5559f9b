//go:build cgo

// Package vips routes raster avatar processing through libvips. It is
// optional; callers opt in by registering it over the default pure-Go
// pipeline.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
	"github.com/Skryldev/image-fetcher/pipeline"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Backend owns the libvips runtime. Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// ─── ThumbnailStep ────────────────────────────────────────────────────────────

// ThumbnailStep produces a square thumbnail at the request's target size
// using vips_thumbnail(). It operates directly on the encoded payload, so
// JPEG sources decode with shrink-on-load and the full-size bitmap is never
// allocated. Centre interest matches the pure-Go crop: the shorter side wins
// and an odd pixel of excess is dropped from the right/bottom edge.
type ThumbnailStep struct{}

func (s *ThumbnailStep) Name() string { return "vips.thumbnail" }

func (s *ThumbnailStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if len(img.Payload.Bytes) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewThumbnailFromBuffer(img.Payload.Bytes, img.TargetSize, img.TargetSize, govips.InterestingCentre)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %v", apperrors.ErrMalformedRaster, err))
	}
	defer ref.Close()

	// Round-trip through PNG so the mask step receives a plain NRGBA bitmap.
	raw, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	decoded, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	nrgba, ok := decoded.(*image.NRGBA)
	if !ok {
		nrgba = imaging.Clone(decoded)
	}

	out := *img
	out.Image = nrgba
	out.Meta.Width = nrgba.Bounds().Dx()
	out.Meta.Height = nrgba.Bounds().Dy()
	return &out, nil
}

// ─── RegisterVipsBackend ──────────────────────────────────────────────────────

// RegisterVipsBackend replaces the pure-Go raster pipeline with a libvips
// one. Vector payloads keep the default rasterizer. The backend must be
// started before any fetch runs through the registered pipeline.
func RegisterVipsBackend(reg *core.PipelineRegistry, b *Backend) {
	if b == nil {
		return
	}
	reg.Register("image/", pipeline.New().Use(&ThumbnailStep{}, &pipeline.CircleMaskStep{}))
}

// compile-time interface checks
var _ core.Step = (*ThumbnailStep)(nil)
