// Package pipeline provides built-in pipeline steps and the extensible Step API.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP with the stdlib image sniffer

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw raster bytes from img.Payload into an image.Image.
// The concrete codec is whatever the stdlib image registry sniffs from the
// bytes: JPEG, PNG, GIF, BMP, and TIFF arrive through imaging, WebP through
// the x/image import above. The declared content type only chose this
// pipeline; it plays no part in codec selection.
type DecodeStep struct{}

func (s *DecodeStep) Name() string { return "raster.decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Payload.Bytes) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Payload.Bytes))
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %v", apperrors.ErrMalformedRaster, err))
	}

	out := *img
	out.Image = decoded
	b := decoded.Bounds()
	out.Meta.Width = b.Dx()
	out.Meta.Height = b.Dy()
	return &out, nil
}

// ── Square crop ───────────────────────────────────────────────────────────────

// SquareCropStep crops the centered square whose side is the shorter source
// dimension. Odd excess splits by integer division, so the kept window sits
// one pixel toward the left or top. Already-square images pass through
// untouched.
type SquareCropStep struct{}

func (s *SquareCropStep) Name() string { return "crop.square" }

func (s *SquareCropStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	src := img.Image
	if src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img, nil
	}
	side := w
	if h < w {
		side = h
	}

	out := *img
	out.Image = imaging.CropCenter(src, side, side)
	out.Meta.Width = side
	out.Meta.Height = side
	return &out, nil
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep resamples the image to TargetSize×TargetSize and leaves a
// non-premultiplied *image.NRGBA in img.Image. An image already at the
// target size is converted without resampling, so byte-identical pixels
// survive a same-size pass.
type ResizeStep struct {
	// Filter overrides the resampling kernel. Defaults to the Catmull-Rom
	// cubic filter.
	Filter imaging.ResampleFilter
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	src := img.Image
	if src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	size := img.TargetSize
	if size < 1 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("%w: %d", apperrors.ErrInvalidTargetSize, size))
	}

	b := src.Bounds()
	var dst *image.NRGBA
	if b.Dx() == size && b.Dy() == size {
		dst = imaging.Clone(src)
	} else {
		filter := s.Filter
		if filter.Kernel == nil {
			filter = imaging.CatmullRom
		}
		dst = imaging.Resize(src, size, size, filter)
	}

	out := *img
	out.Image = dst
	out.Meta.Width = size
	out.Meta.Height = size
	return &out, nil
}

// compile-time interface checks
var (
	_ core.Step = (*DecodeStep)(nil)
	_ core.Step = (*SquareCropStep)(nil)
	_ core.Step = (*ResizeStep)(nil)
)
