package core

import "sync"

// HandleCache is the in-memory tier that sits in front of a Fetcher: it
// memoizes the PendingResult per identifier so a UI can ask for the same
// avatar every frame and trigger at most one underlying fetch. Entries stay
// until Forget is called; there is no eviction.
//
// Using a HandleCache is the explicit way to coalesce concurrent lookups of
// one identifier. Calling Fetcher.Fetch directly keeps the
// one-call-one-fetch behaviour.
type HandleCache struct {
	mu      sync.Mutex
	entries map[CacheKey]*PendingResult
}

// NewHandleCache returns an empty HandleCache.
func NewHandleCache() *HandleCache {
	return &HandleCache{entries: make(map[CacheKey]*PendingResult)}
}

// GetOrFetch returns the memoized result for identifier, invoking fetch at
// most once while an entry exists. fetch must not block: it is called with
// the cache lock held, which is what keeps a burst of lookups from racing
// into duplicate fetches.
func (c *HandleCache) GetOrFetch(identifier string, fetch func() *PendingResult) *PendingResult {
	key := DeriveKey(identifier)
	c.mu.Lock()
	defer c.mu.Unlock()
	if pr, ok := c.entries[key]; ok {
		return pr
	}
	pr := fetch()
	c.entries[key] = pr
	return pr
}

// Get returns the memoized result for identifier, if any.
func (c *HandleCache) Get(identifier string) (*PendingResult, bool) {
	key := DeriveKey(identifier)
	c.mu.Lock()
	defer c.mu.Unlock()
	pr, ok := c.entries[key]
	return pr, ok
}

// Forget drops the entry for identifier, forcing the next GetOrFetch to
// fetch again. Dropping an unresolved entry does not cancel its fetch.
func (c *HandleCache) Forget(identifier string) {
	key := DeriveKey(identifier)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of memoized entries.
func (c *HandleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
