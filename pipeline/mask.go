package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
)

// ── Circular mask ─────────────────────────────────────────────────────────────

// CircleMaskStep converts the decoded image into a square Bitmap and applies
// Round to it in place. It is the terminal step of every avatar pipeline.
type CircleMaskStep struct{}

func (s *CircleMaskStep) Name() string { return "mask.circle" }

func (s *CircleMaskStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	bm := img.Bitmap
	if bm == nil {
		if img.Image == nil {
			return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
		}
		switch src := img.Image.(type) {
		case *image.NRGBA:
			bm = core.FromNRGBA(src)
		default:
			bm = core.FromNRGBA(imaging.Clone(src))
		}
	}
	if bm.Width != bm.Height {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("mask requires a square bitmap, got %dx%d", bm.Width, bm.Height))
	}

	Round(bm)

	out := *img
	out.Image = nil
	out.Bitmap = bm
	out.Meta.Width = bm.Width
	out.Meta.Height = bm.Height
	return &out, nil
}

// Round applies an antialiased circular mask to the square bitmap in place.
// Pixels whose centre lies outside the inscribed circle become fully
// transparent; pixels within one pixel of the rim have all four channels
// scaled by the distance to the rim and truncated to bytes; everything
// closer to the centre is untouched.
//
// All arithmetic is float32. The truncated channel bytes in the edge band
// depend on single-precision rounding, so none of it may widen to float64.
func Round(bm *core.Bitmap) {
	side := bm.Width
	radius := float32(side) / 2
	radiusSq := radius * radius

	for i := 0; i < side*side; i++ {
		x := i % side
		y := i / side
		dx := radius - float32(x)
		dy := radius - float32(y)
		distSq := dx*dx + dy*dy

		p := bm.Pix[i*4 : i*4+4 : i*4+4]
		if distSq > radiusSq {
			p[0], p[1], p[2], p[3] = 0, 0, 0, 0
			continue
		}
		// sqrt via float64 is exact for float32 operands; the result rounds
		// to the same float32 a native sqrtf would produce.
		edge := radius - float32(math.Sqrt(float64(distSq)))
		if edge <= 1.0 {
			p[0] = uint8(float32(p[0]) * edge)
			p[1] = uint8(float32(p[1]) * edge)
			p[2] = uint8(float32(p[2]) * edge)
			p[3] = uint8(float32(p[3]) * edge)
		}
	}
}

var _ core.Step = (*CircleMaskStep)(nil)
