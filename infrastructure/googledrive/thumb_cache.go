package googledrive

import (
	"sync"
	"time"
)

const (
	thumbCacheTTL = 2 * time.Hour
	thumbCacheCap = 10000
)

type thumbEntry struct {
	url     string
	expires time.Time
}

// thumbCache is a small process-local cache for resolved thumbnail URLs.
// Drive links expire server-side after a few hours, so entries carry a
// TTL shorter than that. Eviction is opportunistic on insert.
type thumbCache struct {
	mu      sync.RWMutex
	entries map[string]thumbEntry
}

func newThumbCache() *thumbCache {
	return &thumbCache{entries: make(map[string]thumbEntry)}
}

func (c *thumbCache) get(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return "", false
	}
	return entry.url, true
}

func (c *thumbCache) put(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= thumbCacheCap {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		// Still full after dropping expired entries: start over rather
		// than track LRU order for what is only a convenience cache.
		if len(c.entries) >= thumbCacheCap {
			c.entries = make(map[string]thumbEntry)
		}
	}

	c.entries[key] = thumbEntry{url: url, expires: time.Now().Add(thumbCacheTTL)}
}
