package core

import (
	"context"
	"time"
)

// Transport issues a GET for an identifier and delivers the outcome through
// done, invoked exactly once from an arbitrary goroutine.
// Implementations live in adapters/transport/.
type Transport interface {
	Fetch(ctx context.Context, url string, done func(*RawPayload, error))
}

// BitmapStore persists processed bitmaps and retrieves them later.
// Implementations live in adapters/store/.
type BitmapStore interface {
	// Exists reports whether an entry for key is present. It must be cheap
	// enough to call on the UI thread; stat errors read as absent.
	Exists(key CacheKey) bool
	// Read loads and decodes the entry. A present-but-undecodable entry is
	// an error, not a miss.
	Read(ctx context.Context, key CacheKey) (*Bitmap, error)
	// Write persists the bitmap. Concurrent writers to different keys never
	// interfere; the same key is last-writer-wins with no torn entries.
	Write(ctx context.Context, key CacheKey, bm *Bitmap) error
}

// TextureRegistry is implemented by the UI layer. Both methods are called
// from arbitrary goroutines and must be safe for concurrent use.
type TextureRegistry interface {
	// Register uploads the bitmap under a debug name (the identifier) and
	// returns the UI layer's handle for it.
	Register(name string, bm *Bitmap) TextureHandle
	// RequestRepaint wakes the UI so it re-polls its pending results. The
	// fetcher calls it once per resolved fetch.
	RequestRepaint()
}

// MetricsCollector receives performance observations from the fetcher and
// its pipelines.
type MetricsCollector interface {
	RecordStageTime(stage string, d time.Duration)
	RecordCacheLookup(hit bool)
	RecordFetchOutcome(outcome string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(stage string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// nopLogger and nopMetrics are the defaults until a caller attaches real
// implementations.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordStageTime(string, time.Duration)    {}
func (nopMetrics) RecordCacheLookup(bool)                   {}
func (nopMetrics) RecordFetchOutcome(string, time.Duration) {}
func (nopMetrics) RecordThroughput(int64)                   {}
func (nopMetrics) RecordError(string, string)               {}
