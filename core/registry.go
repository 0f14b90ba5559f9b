package core

import (
	"sort"
	"strings"
	"sync"
)

// ── Pipeline registry ──────────────────────────────────────────────────────────

type prefixPipeline struct {
	prefix string
	runner PipelineRunner
}

// PipelineRegistry maps declared content types to processing pipelines by
// prefix. The longest registered prefix wins, so "image/svg" shadows
// "image/". Dispatch uses the declared content type only — there is no
// sniffing fallback for unrecognized types.
type PipelineRegistry struct {
	mu      sync.RWMutex
	entries []prefixPipeline
}

// NewPipelineRegistry returns an empty PipelineRegistry.
func NewPipelineRegistry() *PipelineRegistry { return &PipelineRegistry{} }

// Register binds prefix to runner, replacing any previous binding for the
// same prefix.
func (r *PipelineRegistry) Register(prefix string, runner PipelineRunner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].prefix == prefix {
			r.entries[i].runner = runner
			return
		}
	}
	r.entries = append(r.entries, prefixPipeline{prefix: prefix, runner: runner})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return len(r.entries[i].prefix) > len(r.entries[j].prefix)
	})
}

// PipelineFor returns the pipeline registered for the longest prefix of
// contentType. Content-type parameters ("image/png; charset=x") match their
// base prefix.
func (r *PipelineRegistry) PipelineFor(contentType string) (PipelineRunner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if strings.HasPrefix(contentType, e.prefix) {
			return e.runner, true
		}
	}
	return nil, false
}

// Prefixes returns the registered prefixes, longest first.
func (r *PipelineRegistry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.prefix
	}
	return out
}
