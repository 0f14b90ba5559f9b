package core

import (
	"context"
	"sync"
)

// PendingResult is the caller's view of an in-flight fetch. It starts
// pending and transitions to resolved exactly once, from whatever goroutine
// finishes the work. A UI typically polls it every frame; all methods are
// safe for concurrent use and keep returning the same outcome after
// resolution.
type PendingResult struct {
	done   chan struct{}
	handle TextureHandle
	err    error
}

// resultSender is the producer half of a PendingResult. Only the fetcher
// holds one; sync.Once enforces the write-once contract even if two
// completion paths race.
type resultSender struct {
	p    *PendingResult
	once sync.Once
}

func newPendingResult() (*PendingResult, *resultSender) {
	p := &PendingResult{done: make(chan struct{})}
	return p, &resultSender{p: p}
}

// send resolves the result. Duplicate calls are ignored.
func (s *resultSender) send(handle TextureHandle, err error) {
	s.once.Do(func() {
		s.p.handle = handle
		s.p.err = err
		close(s.p.done)
	})
}

// Poll returns the outcome once resolved. ok is false while the fetch is
// still in flight; when ok, exactly one of handle and err is meaningful.
func (p *PendingResult) Poll() (handle TextureHandle, err error, ok bool) {
	select {
	case <-p.done:
		return p.handle, p.err, true
	default:
		return nil, nil, false
	}
}

// Ready reports whether the result has resolved.
func (p *PendingResult) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed on resolution.
func (p *PendingResult) Done() <-chan struct{} { return p.done }

// Wait blocks until the result resolves or ctx expires. A ctx error means
// the wait gave up, not that the fetch failed; the fetch keeps running.
func (p *PendingResult) Wait(ctx context.Context) (TextureHandle, error) {
	select {
	case <-p.done:
		return p.handle, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
