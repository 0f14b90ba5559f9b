package imagefetcher

import "github.com/Skryldev/image-fetcher/core"

// Inner exposes the underlying core.Fetcher for advanced use (e.g., direct
// registry access when swapping pipelines).  Prefer the high-level API for
// normal usage.
func (f *Fetcher) Inner() *core.Fetcher { return f.inner }
