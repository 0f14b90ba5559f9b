package core

import "image"

// Bitmap is an RGBA8 pixel buffer, row-major, four bytes per pixel, bounds
// anchored at the origin. Channel values are non-premultiplied; the circular
// mask's fade band scales all four channels in place, leaving those pixels
// premultiplied-style by construction. Disk entries round-trip these bytes
// verbatim.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8 // len == Width*Height*4
}

// NewBitmap allocates a fully transparent Width×Height bitmap.
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{Width: width, Height: height, Pix: make([]uint8, width*height*4)}
}

// FromNRGBA converts src into a Bitmap. The pixel slice is adopted without
// copying when src is origin-anchored with a tight stride; otherwise the
// rows are copied out.
func FromNRGBA(src *image.NRGBA) *Bitmap {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if b.Min.X == 0 && b.Min.Y == 0 && src.Stride == w*4 && len(src.Pix) >= w*h*4 {
		return &Bitmap{Width: w, Height: h, Pix: src.Pix[: w*h*4 : w*h*4]}
	}
	dst := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst.Pix[y*w*4:(y+1)*w*4], src.Pix[off:off+w*4])
	}
	return dst
}

// NRGBA wraps the bitmap's pixels as an *image.NRGBA without copying.
// Mutating the returned image mutates the bitmap.
func (b *Bitmap) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// PixOffset returns the index of the first channel byte of the pixel (x, y).
func (b *Bitmap) PixOffset(x, y int) int { return (y*b.Width + x) * 4 }
