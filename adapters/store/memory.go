package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
)

// Memory keeps entries in a map. It serves tests and processes that want
// caching without touching the filesystem.
type Memory struct {
	mu      sync.RWMutex
	entries map[core.CacheKey]*core.Bitmap
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[core.CacheKey]*core.Bitmap)}
}

func (m *Memory) Exists(key core.CacheKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

func (m *Memory) Read(ctx context.Context, key core.CacheKey) (*core.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "memory.read", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bm, ok := m.entries[key]
	if !ok {
		return nil, apperrors.New(apperrors.CategoryStorage, "memory.read", fmt.Errorf("key not found: %s", key))
	}
	return cloneBitmap(bm), nil
}

func (m *Memory) Write(ctx context.Context, key core.CacheKey, bm *core.Bitmap) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "memory.write", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cloneBitmap(bm)
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cloneBitmap deep-copies bm so callers and the store never share pixel
// memory, the same isolation a disk round-trip gives.
func cloneBitmap(bm *core.Bitmap) *core.Bitmap {
	out := core.NewBitmap(bm.Width, bm.Height)
	copy(out.Pix, bm.Pix)
	return out
}

var _ core.BitmapStore = (*Memory)(nil)
