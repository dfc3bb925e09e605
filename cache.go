package lazyorm

import "sync"

// CacheScope controls how long the executor's local cache keeps results.
type CacheScope int

const (
	// ScopeSession keeps results until commit, rollback, an update or ClearLocalCache.
	ScopeSession CacheScope = iota
	// ScopeStatement drops results as soon as the top-level query returns.
	ScopeStatement
)

// executionPlaceholder occupies a cache slot while its query is running.
type executionPlaceholder struct{}

// localCache is the per-executor result cache, keyed by CacheKey.String().
type localCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

func newLocalCache() *localCache {
	return &localCache{entries: make(map[string]any)}
}

func (c *localCache) get(key CacheKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key.String()]
	return v, ok
}

func (c *localCache) put(key CacheKey, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = v
}

func (c *localCache) remove(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// list returns the cached rows for key, ignoring in-flight placeholders.
func (c *localCache) list(key CacheKey) ([]Model, bool) {
	v, ok := c.get(key)
	if !ok {
		return nil, false
	}
	list, ok := v.([]Model)
	return list, ok
}

// inFlight reports whether the query for key is still running.
func (c *localCache) inFlight(key CacheKey) bool {
	v, ok := c.get(key)
	if !ok {
		return false
	}
	_, running := v.(executionPlaceholder)
	return running
}

func (c *localCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *localCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
