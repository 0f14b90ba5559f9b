package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/image-fetcher/config"
	apperrors "github.com/Skryldev/image-fetcher/errors"
)

// PipelineRunner is a minimal interface over pipeline.Pipeline so that core
// does not import the pipeline package (avoiding a circular dependency).
type PipelineRunner interface {
	Run(ctx context.Context, img *ImageData) (*ImageData, map[string]time.Duration, error)
	Clone() PipelineRunner
}

// Fetcher is the central orchestrator. It answers Fetch calls from the UI
// thread, schedules disk loads and cache writes on a worker pool, runs
// network completions on the transport's goroutines, and resolves pending
// results from whichever goroutine finishes. Safe for concurrent use.
type Fetcher struct {
	cfg       config.Config
	store     BitmapStore
	transport Transport
	registry  *PipelineRegistry
	textures  TextureRegistry
	logger    Logger
	metrics   MetricsCollector

	// Worker pool.
	taskQueue chan task
	wg        sync.WaitGroup
	once      sync.Once
	shutdown  chan struct{}

	// Atomic counters for lightweight internal metrics.
	resolvedCount int64
	errorCount    int64
}

// New creates a Fetcher with the given collaborators. Call Start() before
// fetching; call Stop() when done.
func New(cfg config.Config, store BitmapStore, transport Transport, registry *PipelineRegistry, textures TextureRegistry) *Fetcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Fetcher{
		cfg:       cfg,
		store:     store,
		transport: transport,
		registry:  registry,
		textures:  textures,
		logger:    nopLogger{},
		metrics:   nopMetrics{},
		taskQueue: make(chan task, queueSize),
		shutdown:  make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (f *Fetcher) SetLogger(l Logger) {
	if l != nil {
		f.logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (f *Fetcher) SetMetrics(m MetricsCollector) {
	if m != nil {
		f.metrics = m
	}
}

// Registry returns the pipeline registry so callers can rebind content
// types after construction.
func (f *Fetcher) Registry() *PipelineRegistry { return f.registry }

// Store returns the bitmap store.
func (f *Fetcher) Store() BitmapStore { return f.store }

// Start launches the worker pool. It is idempotent.
func (f *Fetcher) Start() {
	f.once.Do(func() {
		workerCount := f.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			f.wg.Add(1)
			go f.worker()
		}
	})
}

// Stop shuts down the workers. Queued tasks are abandoned: a pending result
// owned by an abandoned disk load never resolves, so callers stop polling
// once they call Stop.
func (f *Fetcher) Stop() {
	close(f.shutdown)
	f.wg.Wait()
}

// Fetch returns immediately with a PendingResult that resolves to a texture
// handle for identifier's image at targetSize. The calling thread pays for
// one key derivation and one stat; reads, decodes, and network completions
// all happen off-thread.
//
// Fetch does not deduplicate: two concurrent calls for the same identifier
// issue two network requests. Wrap the fetcher in a HandleCache to coalesce
// per-identifier lookups.
func (f *Fetcher) Fetch(ctx context.Context, identifier string, targetSize int) *PendingResult {
	pending, sender := newPendingResult()

	if identifier == "" {
		sender.send(nil, apperrors.New(apperrors.CategoryInput, "fetch", apperrors.ErrEmptyInput))
		return pending
	}
	if targetSize < 1 {
		sender.send(nil, apperrors.New(apperrors.CategoryInput, "fetch",
			fmt.Errorf("%w: %d", apperrors.ErrInvalidTargetSize, targetSize)))
		return pending
	}

	key := DeriveKey(identifier)
	reqID := uuid.NewString()
	start := time.Now()

	if f.store.Exists(key) {
		f.metrics.RecordCacheLookup(true)
		f.logger.Debug("fetch.disk", "request_id", reqID, "key", key.String(), "identifier", identifier)
		f.loadFromDisk(ctx, reqID, key, identifier, sender, start)
		return pending
	}

	f.metrics.RecordCacheLookup(false)
	f.logger.Debug("fetch.network", "request_id", reqID, "key", key.String(), "identifier", identifier)
	f.fetchFromNetwork(ctx, reqID, key, identifier, targetSize, sender, start)
	return pending
}

// Process runs the content-type pipeline for payload and returns the final
// square bitmap. Exposed for callers that already hold image bytes.
func (f *Fetcher) Process(ctx context.Context, payload *RawPayload, targetSize int) (*Bitmap, error) {
	return f.process(ctx, uuid.NewString(), payload, targetSize)
}

// Prefetch warms textures (and, as persists land, the disk cache) for
// several identifiers ahead of display. It blocks until every fetch
// resolves and returns the first error observed; later fetches still run to
// completion.
func (f *Fetcher) Prefetch(ctx context.Context, targetSize int, identifiers ...string) error {
	limit := f.cfg.PrefetchConcurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, id := range identifiers {
		g.Go(func() error {
			_, err := f.Fetch(ctx, id, targetSize).Wait(ctx)
			return err
		})
	}
	return g.Wait()
}

// ResolvedCount returns the number of fetches resolved with a handle.
func (f *Fetcher) ResolvedCount() int64 { return atomic.LoadInt64(&f.resolvedCount) }

// ErrorCount returns the number of fetches resolved with an error.
func (f *Fetcher) ErrorCount() int64 { return atomic.LoadInt64(&f.errorCount) }

// ── fetch paths ─────────────────────────────────────────────────────────────────

func (f *Fetcher) loadFromDisk(ctx context.Context, reqID string, key CacheKey, identifier string, sender *resultSender, start time.Time) {
	err := f.submit(task{
		id:   reqID,
		kind: "disk.load",
		ctx:  ctx,
		run: func(ctx context.Context) {
			bm, err := f.store.Read(ctx, key)
			if err != nil {
				// A cached-but-unreadable entry surfaces; no network fallback.
				f.resolve(sender, nil, err, reqID, start)
				return
			}
			handle := f.textures.Register(identifier, bm)
			f.resolve(sender, handle, nil, reqID, start)
		},
	})
	if err != nil {
		f.resolve(sender, nil, err, reqID, start)
	}
}

func (f *Fetcher) fetchFromNetwork(ctx context.Context, reqID string, key CacheKey, identifier string, targetSize int, sender *resultSender, start time.Time) {
	f.transport.Fetch(ctx, identifier, func(payload *RawPayload, err error) {
		if err != nil {
			f.resolve(sender, nil, err, reqID, start)
			return
		}
		bm, err := f.process(ctx, reqID, payload, targetSize)
		if err != nil {
			f.resolve(sender, nil, err, reqID, start)
			return
		}
		handle := f.textures.Register(identifier, bm)
		f.persist(reqID, key, bm)
		f.resolve(sender, handle, nil, reqID, start)
	})
}

// persist schedules a best-effort cache write. It runs only after the
// texture handle exists and never blocks or fails the fetch: a full queue
// or a write error costs a warn log and a future re-download.
func (f *Fetcher) persist(reqID string, key CacheKey, bm *Bitmap) {
	err := f.submit(task{
		id:   reqID,
		kind: "cache.persist",
		ctx:  context.Background(),
		run: func(ctx context.Context) {
			if err := f.store.Write(ctx, key, bm); err != nil {
				f.logger.Warn("cache.persist.failed", "request_id", reqID, "key", key.String(), "error", err.Error())
			}
		},
	})
	if err != nil {
		f.logger.Warn("cache.persist.dropped", "request_id", reqID, "key", key.String(), "error", err.Error())
	}
}

func (f *Fetcher) process(ctx context.Context, reqID string, payload *RawPayload, targetSize int) (*Bitmap, error) {
	if targetSize < 1 {
		return nil, apperrors.New(apperrors.CategoryInput, "process",
			fmt.Errorf("%w: %d", apperrors.ErrInvalidTargetSize, targetSize))
	}
	runner, ok := f.registry.PipelineFor(payload.ContentType)
	if !ok {
		f.metrics.RecordError("process", string(apperrors.CategoryDecode))
		return nil, apperrors.New(apperrors.CategoryDecode, "process",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedContentType, payload.ContentType))
	}

	img := &ImageData{
		Payload:    *payload,
		TargetSize: targetSize,
		Meta:       Metadata{ContentType: payload.ContentType, SizeBytes: int64(len(payload.Bytes))},
		RequestID:  reqID,
	}

	out, timings, err := runner.Run(ctx, img)
	for stage, d := range timings {
		f.metrics.RecordStageTime(stage, d)
	}
	if err != nil {
		return nil, err
	}
	if out.Bitmap == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, "process",
			fmt.Errorf("pipeline for %q produced no bitmap", payload.ContentType))
	}
	f.metrics.RecordThroughput(int64(len(payload.Bytes)))
	return out.Bitmap, nil
}

// resolve delivers the outcome exactly once, bumps counters, and signals the
// UI. Duplicate resolutions are swallowed by the sender.
func (f *Fetcher) resolve(sender *resultSender, handle TextureHandle, err error, reqID string, start time.Time) {
	sender.send(handle, err)
	elapsed := time.Since(start)
	if err != nil {
		atomic.AddInt64(&f.errorCount, 1)
		f.metrics.RecordFetchOutcome("error", elapsed)
		f.logger.Debug("fetch.resolved", "request_id", reqID, "outcome", "error", "error", err.Error(),
			"duration_ms", elapsed.Milliseconds())
	} else {
		atomic.AddInt64(&f.resolvedCount, 1)
		f.metrics.RecordFetchOutcome("ok", elapsed)
		f.logger.Debug("fetch.resolved", "request_id", reqID, "outcome", "ok",
			"duration_ms", elapsed.Milliseconds())
	}
	f.textures.RequestRepaint()
}

// ── worker pool internals ──────────────────────────────────────────────────────

func (f *Fetcher) worker() {
	defer f.wg.Done()
	for {
		select {
		case <-f.shutdown:
			return
		case t, ok := <-f.taskQueue:
			if !ok {
				return
			}
			f.runTask(t)
		}
	}
}

func (f *Fetcher) runTask(t task) {
	ctx := t.ctx
	timeout := f.cfg.JobTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	t.run(ctx)
	f.metrics.RecordStageTime(t.kind, time.Since(start))
}

// submit enqueues a task without blocking. Returns ErrWorkerPoolFull when
// the queue is saturated.
func (f *Fetcher) submit(t task) error {
	select {
	case f.taskQueue <- t:
		return nil
	default:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
	}
}
