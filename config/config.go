package config

import (
	"errors"
	"time"
)

// Backend selects the raster processing backend.
type Backend string

const (
	// BackendImaging is the default pure-Go path.
	BackendImaging Backend = "imaging"
	// BackendVips routes raster payloads through libvips. Requires the
	// adapters/vips package to be registered by the caller.
	BackendVips Backend = "vips"
)

// Config is the top-level configuration struct.  All fields except CacheDir
// have safe defaults, so callers can start from Default() and override only
// what they need.
type Config struct {
	// CacheDir is the directory holding processed entries, one file per
	// cache key. It must already exist; the store never creates it.
	CacheDir string

	// Worker pool controls.
	WorkerCount int // default: runtime.NumCPU()
	QueueSize   int // max queued tasks before disk loads fail fast; default: 256
	JobTimeout  time.Duration

	// Network.
	FetchTimeout time.Duration // per-request transport timeout
	MaxBodyBytes int64         // response body cap; 0 = no limit

	// Prefetch fan-out; 0 resolves to GOMAXPROCS.
	PrefetchConcurrency int

	// Raster backend selection.
	Backend Backend

	// Logging / metrics.
	LogLevel string // "debug", "info", "warn", "error"
}

// Default returns a Config populated with sensible production defaults.
// CacheDir is left empty; Validate rejects the zero value until it is set.
func Default() Config {
	return Config{
		WorkerCount:         0, // resolved at runtime to NumCPU
		QueueSize:           256,
		JobTimeout:          30 * time.Second,
		FetchTimeout:        15 * time.Second,
		MaxBodyBytes:        32 * 1024 * 1024,
		PrefetchConcurrency: 0, // resolved at runtime to GOMAXPROCS
		Backend:             BackendImaging,
		LogLevel:            "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.CacheDir == "" {
		return errors.New("config: CacheDir must be set")
	}
	if c.QueueSize < 0 {
		return errors.New("config: QueueSize must not be negative")
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("config: MaxBodyBytes must not be negative")
	}
	if c.Backend != "" && c.Backend != BackendImaging && c.Backend != BackendVips {
		return errors.New("config: unknown Backend")
	}
	return nil
}
