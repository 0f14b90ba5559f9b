package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skryldev/image-fetcher/adapters/store"
	"github.com/Skryldev/image-fetcher/config"
	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
	"github.com/Skryldev/image-fetcher/hooks"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

// fakeTransport delivers a canned payload or error from its own goroutine,
// the way a real transport hands completions off the calling thread.
type fakeTransport struct {
	payload core.RawPayload
	err     error
	calls   int32
}

func (t *fakeTransport) Fetch(_ context.Context, _ string, done func(*core.RawPayload, error)) {
	atomic.AddInt32(&t.calls, 1)
	go func() {
		if t.err != nil {
			done(nil, t.err)
			return
		}
		p := t.payload
		done(&p, nil)
	}()
}

func (t *fakeTransport) callCount() int32 { return atomic.LoadInt32(&t.calls) }

// bitmapRunner stands in for a pipeline: it emits a TargetSize-square bitmap
// or a canned error.
type bitmapRunner struct{ err error }

func (r *bitmapRunner) Run(_ context.Context, img *core.ImageData) (*core.ImageData, map[string]time.Duration, error) {
	timings := map[string]time.Duration{"stub": time.Millisecond}
	if r.err != nil {
		return nil, timings, r.err
	}
	out := *img
	out.Bitmap = core.NewBitmap(img.TargetSize, img.TargetSize)
	return &out, timings, nil
}

func (r *bitmapRunner) Clone() core.PipelineRunner { return r }

type recordingTextures struct {
	mu       sync.Mutex
	bitmaps  map[string]*core.Bitmap
	names    []string
	repaints int64
}

func newRecordingTextures() *recordingTextures {
	return &recordingTextures{bitmaps: make(map[string]*core.Bitmap)}
}

func (r *recordingTextures) Register(name string, bm *core.Bitmap) core.TextureHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.bitmaps[name] = bm
	return len(r.names)
}

func (r *recordingTextures) RequestRepaint() { atomic.AddInt64(&r.repaints, 1) }

func (r *recordingTextures) repaintCount() int64 { return atomic.LoadInt64(&r.repaints) }

func (r *recordingTextures) bitmap(name string) *core.Bitmap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bitmaps[name]
}

func (r *recordingTextures) registered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

type fetcherFixture struct {
	fetcher   *core.Fetcher
	store     *store.Memory
	transport *fakeTransport
	textures  *recordingTextures
}

func newTestFetcher(t *testing.T, tr *fakeTransport) *fetcherFixture {
	t.Helper()
	reg := core.NewPipelineRegistry()
	reg.Register("image/", &bitmapRunner{})
	st := store.NewMemory()
	tx := newRecordingTextures()
	cfg := config.Config{WorkerCount: 2, QueueSize: 16, JobTimeout: 5 * time.Second}
	f := core.New(cfg, st, tr, reg, tx)
	f.Start()
	t.Cleanup(f.Stop)
	return &fetcherFixture{fetcher: f, store: st, transport: tr, textures: tx}
}

func waitResolved(t *testing.T, p *core.PendingResult) (core.TextureHandle, error) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not resolve")
	}
	handle, err, _ := p.Poll()
	return handle, err
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", what)
}

// ── Fetch paths ───────────────────────────────────────────────────────────────

func TestFetcher_DiskHitSkipsNetwork(t *testing.T) {
	fx := newTestFetcher(t, &fakeTransport{})
	const id = "https://cdn.example.com/u/alice.png"
	seed := core.NewBitmap(8, 8)
	seed.Pix[0] = 42
	if err := fx.store.Write(context.Background(), core.DeriveKey(id), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	handle, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), id, 64))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if handle == nil {
		t.Fatal("handle is nil")
	}
	if got := fx.transport.callCount(); got != 0 {
		t.Fatalf("transport called %d times on a disk hit", got)
	}
	bm := fx.textures.bitmap(id)
	if bm == nil || bm.Width != 8 || bm.Pix[0] != 42 {
		t.Fatalf("registered bitmap does not match the stored entry: %+v", bm)
	}
}

func TestFetcher_MissProcessesRegistersAndPersists(t *testing.T) {
	tr := &fakeTransport{payload: core.RawPayload{
		Bytes:       []byte{1, 2, 3},
		ContentType: "image/png",
	}}
	fx := newTestFetcher(t, tr)
	const id = "https://cdn.example.com/u/bob.png"

	handle, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), id, 16))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if handle == nil {
		t.Fatal("handle is nil")
	}
	if got := tr.callCount(); got != 1 {
		t.Fatalf("transport called %d times, want 1", got)
	}
	bm := fx.textures.bitmap(id)
	if bm == nil || bm.Width != 16 || bm.Height != 16 {
		t.Fatalf("registered bitmap = %+v, want 16x16", bm)
	}
	// The cache write is fire-and-forget; it lands shortly after resolution.
	eventually(t, "persisted entry", func() bool {
		return fx.store.Exists(core.DeriveKey(id))
	})
}

func TestFetcher_TransportErrorResolves(t *testing.T) {
	boom := apperrors.New(apperrors.CategoryNetwork, "http.get", errors.New("connection refused"))
	fx := newTestFetcher(t, &fakeTransport{err: boom})

	handle, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), "https://cdn.example.com/u/erin.png", 16))
	if handle != nil {
		t.Fatalf("handle = %v, want nil", handle)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the transport error", err)
	}
	if fx.textures.registered() != 0 {
		t.Fatal("a texture was registered for a failed fetch")
	}
	if fx.store.Len() != 0 {
		t.Fatal("a failed fetch was persisted")
	}
	eventually(t, "error counter", func() bool { return fx.fetcher.ErrorCount() == 1 })
}

func TestFetcher_PipelineErrorResolves(t *testing.T) {
	tr := &fakeTransport{payload: core.RawPayload{Bytes: []byte{1}, ContentType: "image/png"}}
	fx := newTestFetcher(t, tr)
	boom := errors.New("pipeline exploded")
	fx.fetcher.Registry().Register("image/", &bitmapRunner{err: boom})

	_, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), "https://cdn.example.com/u/frank.png", 16))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the pipeline error", err)
	}
	if fx.store.Len() != 0 {
		t.Fatal("a failed fetch was persisted")
	}
}

func TestFetcher_UnsupportedContentType(t *testing.T) {
	tr := &fakeTransport{payload: core.RawPayload{Bytes: []byte{1}, ContentType: "application/pdf"}}
	fx := newTestFetcher(t, tr)

	_, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), "https://cdn.example.com/u/doc.pdf", 16))
	if !errors.Is(err, apperrors.ErrUnsupportedContentType) {
		t.Fatalf("err = %v, want ErrUnsupportedContentType", err)
	}
	if !strings.Contains(err.Error(), "application/pdf") {
		t.Fatalf("err = %v, want the offending content type in the message", err)
	}
}

func TestFetcher_RejectsEmptyIdentifier(t *testing.T) {
	fx := newTestFetcher(t, &fakeTransport{})

	pending := fx.fetcher.Fetch(context.Background(), "", 16)

	handle, err, ok := pending.Poll()
	if !ok {
		t.Fatal("input validation should resolve synchronously")
	}
	if handle != nil || !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Fatalf("Poll = (%v, %v), want ErrEmptyInput", handle, err)
	}
	if got := fx.transport.callCount(); got != 0 {
		t.Fatalf("transport called %d times for invalid input", got)
	}
}

func TestFetcher_RejectsInvalidTargetSize(t *testing.T) {
	fx := newTestFetcher(t, &fakeTransport{})

	pending := fx.fetcher.Fetch(context.Background(), "https://cdn.example.com/u/gina.png", 0)

	_, err, ok := pending.Poll()
	if !ok || !errors.Is(err, apperrors.ErrInvalidTargetSize) {
		t.Fatalf("Poll = (%v, %v), want synchronous ErrInvalidTargetSize", err, ok)
	}
}

// With no workers running and a single queue slot, the second disk hit
// cannot be scheduled and must resolve with ErrWorkerPoolFull instead of
// blocking the caller.
func TestFetcher_QueueSaturationResolvesError(t *testing.T) {
	st := store.NewMemory()
	tx := newRecordingTextures()
	reg := core.NewPipelineRegistry()
	cfg := config.Config{WorkerCount: 1, QueueSize: 1}
	f := core.New(cfg, st, &fakeTransport{}, reg, tx)
	// No Start: queued tasks stay queued.
	defer f.Stop()

	for _, id := range []string{"one", "two"} {
		if err := st.Write(context.Background(), core.DeriveKey(id), core.NewBitmap(4, 4)); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	first := f.Fetch(context.Background(), "one", 16)
	second := f.Fetch(context.Background(), "two", 16)

	if first.Ready() {
		t.Fatal("first fetch resolved with no workers running")
	}
	_, err, ok := second.Poll()
	if !ok || !errors.Is(err, apperrors.ErrWorkerPoolFull) {
		t.Fatalf("Poll = (%v, %v), want synchronous ErrWorkerPoolFull", err, ok)
	}
}

// ── Process and Prefetch ──────────────────────────────────────────────────────

func TestFetcher_ProcessReturnsBitmapWithoutRegistering(t *testing.T) {
	fx := newTestFetcher(t, &fakeTransport{})

	bm, err := fx.fetcher.Process(context.Background(), &core.RawPayload{
		Bytes:       []byte{1, 2},
		ContentType: "image/png",
	}, 12)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if bm.Width != 12 || bm.Height != 12 {
		t.Fatalf("bitmap = %dx%d, want 12x12", bm.Width, bm.Height)
	}
	if fx.textures.registered() != 0 {
		t.Fatal("inline processing registered a texture")
	}
	if fx.store.Len() != 0 {
		t.Fatal("inline processing persisted an entry")
	}
}

func TestFetcher_PrefetchWarmsAllIdentifiers(t *testing.T) {
	tr := &fakeTransport{payload: core.RawPayload{Bytes: []byte{1}, ContentType: "image/png"}}
	fx := newTestFetcher(t, tr)
	ids := []string{"alice", "bob", "carol"}

	if err := fx.fetcher.Prefetch(context.Background(), 8, ids...); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if got := fx.textures.registered(); got != len(ids) {
		t.Fatalf("registered %d textures, want %d", got, len(ids))
	}
	eventually(t, "all entries persisted", func() bool {
		return fx.store.Len() == len(ids)
	})
}

func TestFetcher_PrefetchReturnsFirstError(t *testing.T) {
	boom := apperrors.New(apperrors.CategoryNetwork, "http.get", errors.New("unreachable"))
	fx := newTestFetcher(t, &fakeTransport{err: boom})

	err := fx.fetcher.Prefetch(context.Background(), 8, "alice", "bob")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the transport error", err)
	}
	eventually(t, "both errors counted", func() bool { return fx.fetcher.ErrorCount() == 2 })
}

// ── Counters, repaints, metrics ───────────────────────────────────────────────

func TestFetcher_CountersAndRepaints(t *testing.T) {
	boom := errors.New("unreachable")
	fx := newTestFetcher(t, &fakeTransport{err: boom})
	const cached = "https://cdn.example.com/u/cached.png"
	if err := fx.store.Write(context.Background(), core.DeriveKey(cached), core.NewBitmap(4, 4)); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	waitResolved(t, fx.fetcher.Fetch(context.Background(), cached, 16))
	waitResolved(t, fx.fetcher.Fetch(context.Background(), "https://cdn.example.com/u/missing.png", 16))

	eventually(t, "resolved counter", func() bool { return fx.fetcher.ResolvedCount() == 1 })
	eventually(t, "error counter", func() bool { return fx.fetcher.ErrorCount() == 1 })
	eventually(t, "one repaint per resolution", func() bool { return fx.textures.repaintCount() == 2 })
}

func TestFetcher_MetricsFlow(t *testing.T) {
	tr := &fakeTransport{payload: core.RawPayload{Bytes: []byte{1, 2, 3, 4}, ContentType: "image/png"}}
	fx := newTestFetcher(t, tr)
	metrics := hooks.NewInMemoryMetrics()
	fx.fetcher.SetMetrics(metrics)
	const id = "https://cdn.example.com/u/metered.png"

	if _, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), id, 16)); err != nil {
		t.Fatalf("miss fetch: %v", err)
	}
	eventually(t, "persisted entry", func() bool { return fx.store.Exists(core.DeriveKey(id)) })
	if _, err := waitResolved(t, fx.fetcher.Fetch(context.Background(), id, 16)); err != nil {
		t.Fatalf("hit fetch: %v", err)
	}

	eventually(t, "metrics settle", func() bool {
		snap := metrics.Snapshot()
		return snap.CacheMisses == 1 &&
			snap.CacheHits == 1 &&
			snap.FetchOutcomes["ok"] == 2 &&
			snap.StageCalls["stub"] >= 1 &&
			snap.StageCalls["disk.load"] >= 1 &&
			snap.StageCalls["cache.persist"] >= 1 &&
			snap.TotalThroughputB == 4
	})
}
