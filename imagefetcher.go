package imagefetcher

import (
	"context"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-fetcher/adapters/store"
	"github.com/Skryldev/image-fetcher/adapters/transport"
	"github.com/Skryldev/image-fetcher/config"
	"github.com/Skryldev/image-fetcher/core"
	"github.com/Skryldev/image-fetcher/pipeline"
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Fetcher is the primary entry point.
type Fetcher struct {
	inner  *core.Fetcher
	raster *pipeline.Pipeline
	vector *pipeline.Pipeline
}

// New creates a fully wired Fetcher: a disk store rooted at cfg.CacheDir, an
// HTTP transport, and the default avatar pipelines bound by content-type
// prefix. cfg.CacheDir must name an existing directory.
func New(cfg config.Config, textures core.TextureRegistry) (*Fetcher, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	st, err := store.NewDisk(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	tr := transport.NewHTTP(
		transport.WithTimeout(cfg.FetchTimeout),
		transport.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)
	return NewWith(cfg, st, tr, textures), nil
}

// NewWith creates a Fetcher around caller-provided store and transport
// implementations. The default pipelines are still registered; rebind
// content types through Inner().Registry() to replace them.
func NewWith(cfg config.Config, st core.BitmapStore, tr core.Transport, textures core.TextureRegistry) *Fetcher {
	raster := pipeline.New().Use(
		&pipeline.DecodeStep{},
		&pipeline.SquareCropStep{},
		&pipeline.ResizeStep{},
		&pipeline.CircleMaskStep{},
	)
	vector := pipeline.New().Use(
		&pipeline.RasterizeStep{},
		&pipeline.CircleMaskStep{},
	)
	registry := core.NewPipelineRegistry()
	registry.Register("image/", raster)
	registry.Register("image/svg", vector)

	inner := core.New(cfg, st, tr, registry, textures)
	return &Fetcher{inner: inner, raster: raster, vector: vector}
}

// SetLogger attaches a structured logger.
func (f *Fetcher) SetLogger(l core.Logger) { f.inner.SetLogger(l) }

// SetMetrics attaches a metrics collector.
func (f *Fetcher) SetMetrics(m core.MetricsCollector) { f.inner.SetMetrics(m) }

// AddHook registers an observer for step events on both default pipelines.
// Attach hooks before Start.
func (f *Fetcher) AddHook(h core.Hook) {
	f.raster.AddHook(h)
	f.vector.AddHook(h)
}

// Start starts the background worker pool.
func (f *Fetcher) Start() { f.inner.Start() }

// Stop shuts down the worker pool.
func (f *Fetcher) Stop() { f.inner.Stop() }

// Fetch returns immediately with a PendingResult for identifier's avatar at
// size pixels. Poll it each frame, or Wait on it.
func (f *Fetcher) Fetch(ctx context.Context, identifier string, size int) *core.PendingResult {
	return f.inner.Fetch(ctx, identifier, size)
}

// Process runs the content-type pipeline on payload synchronously and
// returns the masked square bitmap. Useful when the bytes are already in
// hand.
func (f *Fetcher) Process(ctx context.Context, payload *core.RawPayload, size int) (*core.Bitmap, error) {
	return f.inner.Process(ctx, payload, size)
}

// Prefetch resolves several identifiers ahead of display and blocks until
// all are done.
func (f *Fetcher) Prefetch(ctx context.Context, size int, identifiers ...string) error {
	return f.inner.Prefetch(ctx, size, identifiers...)
}

// NewPipeline creates a reusable, standalone pipeline.
func (f *Fetcher) NewPipeline(steps ...core.Step) *pipeline.Pipeline {
	return pipeline.New().Use(steps...)
}

// Stats returns lightweight fetch statistics.
func (f *Fetcher) Stats() (resolved, errors int64) {
	return f.inner.ResolvedCount(), f.inner.ErrorCount()
}

// NewHandleCache returns an in-memory memoization tier to layer above Fetch
// when per-identifier coalescing is wanted.
func NewHandleCache() *core.HandleCache { return core.NewHandleCache() }

// ── Payload constructors ────────────────────────────────────────────────────────

// FromBytes creates a RawPayload from bytes already in hand.
func FromBytes(b []byte, contentType, source string) *core.RawPayload {
	return &core.RawPayload{Bytes: b, ContentType: contentType, Source: source}
}

// ── Step constructors ─────────────────────────────────────────────────────────

// Decode returns a step that decodes payload bytes into an image.
func Decode() core.Step { return &pipeline.DecodeStep{} }

// SquareCrop returns the centre square crop step.
func SquareCrop() core.Step { return &pipeline.SquareCropStep{} }

// Resize returns the CatmullRom resize step used by the default pipeline.
func Resize() core.Step { return &pipeline.ResizeStep{} }

// ResizeWith returns a resize step with a custom resampling filter.
func ResizeWith(filter imaging.ResampleFilter) core.Step {
	return &pipeline.ResizeStep{Filter: filter}
}

// Rasterize returns the SVG rasterization step.
func Rasterize() core.Step { return &pipeline.RasterizeStep{} }

// CircleMask returns the terminal circular mask step.
func CircleMask() core.Step { return &pipeline.CircleMaskStep{} }
