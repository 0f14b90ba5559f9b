// Package store provides BitmapStore implementations.
package store

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
	"github.com/Skryldev/image-fetcher/utils"
)

// Disk stores processed bitmaps as PNG files, one per cache key, in a flat
// directory. The directory must exist before the store is constructed; the
// store never creates it.
type Disk struct {
	dir string
}

// NewDisk creates a Disk store rooted at dir.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, apperrors.New(apperrors.CategoryConfig, "disk.new", apperrors.ErrMissingCacheDir)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the directory entries are written to.
func (d *Disk) Dir() string { return d.dir }

func (d *Disk) path(key core.CacheKey) string {
	// Keys are hex digests, so they are safe as filenames without cleaning.
	return filepath.Join(d.dir, key.String())
}

// Exists reports whether an entry for key is on disk. Stat errors of any kind
// read as absent; a miss only costs the caller a network fetch.
func (d *Disk) Exists(key core.CacheKey) bool {
	_, err := os.Stat(d.path(key))
	return err == nil
}

// Read loads the entry for key and decodes it back into a bitmap. An entry
// that is present but does not decode is returned as an error, not a miss.
func (d *Disk) Read(ctx context.Context, key core.CacheKey) (*core.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "disk.read", err)
	}

	raw, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "disk.read", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "disk.read.decode",
			fmt.Errorf("%w: %v", apperrors.ErrMalformedRaster, err))
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = imaging.Clone(img)
	}
	return core.FromNRGBA(nrgba), nil
}

// Write encodes bm as PNG and persists it under key. The encode targets a
// temp file in the same directory which is then renamed into place; rename is
// atomic on POSIX, so concurrent readers never observe a torn entry and
// concurrent writers to the same key are last-writer-wins.
func (d *Disk) Write(ctx context.Context, key core.CacheKey, bm *core.Bitmap) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "disk.write", err)
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := imaging.Encode(buf, bm.NRGBA(), imaging.PNG); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "disk.write.encode", err)
	}

	tmp, err := os.CreateTemp(d.dir, "cache-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "disk.write.temp", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperrors.Wrap(apperrors.CategoryStorage, "disk.write.copy", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperrors.Wrap(apperrors.CategoryStorage, "disk.write.close", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		os.Remove(tmp.Name())
		return apperrors.Wrap(apperrors.CategoryStorage, "disk.write.rename", err)
	}
	return nil
}

var _ core.BitmapStore = (*Disk)(nil)
