package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
)

// ── Vector rasterize ──────────────────────────────────────────────────────────

// RasterizeStep parses SVG bytes from img.Payload and rasterizes them onto a
// TargetSize×TargetSize canvas. The document's viewBox is scaled to fill the
// canvas, so the mask that follows sees the same geometry whatever units the
// SVG was authored in.
type RasterizeStep struct{}

func (s *RasterizeStep) Name() string { return "vector.rasterize" }

func (s *RasterizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if len(img.Payload.Bytes) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	size := img.TargetSize
	if size < 1 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("%w: %d", apperrors.ErrInvalidTargetSize, size))
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(img.Payload.Bytes), oksvg.StrictErrorMode)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %v", apperrors.ErrMalformedVector, err))
	}

	icon.SetTarget(0, 0, float64(size), float64(size))
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1)

	out := *img
	out.Image = canvas
	out.Meta.Width = size
	out.Meta.Height = size
	return &out, nil
}

var _ core.Step = (*RasterizeStep)(nil)
