package terminology

import (
	"sync"
	"time"
)

type pairKey struct {
	src, tgt string
}

type cacheEntry struct {
	entries []Entry
	expires time.Time
}

// cache holds the sorted entry list per language pair for a fixed TTL.
// Concurrent population of the same pair is harmless: both writers store
// equivalent lists.
type cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[pairKey]cacheEntry
}

func newCache(ttl time.Duration) *cache {
	return &cache{ttl: ttl, now: time.Now, items: make(map[pairKey]cacheEntry)}
}

func (c *cache) get(src, tgt string) ([]Entry, bool) {
	c.mu.RLock()
	e, ok := c.items[pairKey{src, tgt}]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.entries, true
}

func (c *cache) set(src, tgt string, entries []Entry) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[pairKey{src, tgt}] = cacheEntry{entries: entries, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
