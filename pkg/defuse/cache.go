package defuse

import "pyslice/pkg/refs"

// Cache stores a statement's DefUse triple keyed by its canonical
// location string. It is never invalidated within an analyzer's
// lifetime; only Reset clears it.
type Cache interface {
	Get(key string) (refs.DefUse, bool)
	Set(key string, du refs.DefUse)
	Reset()
}

// memCache is the default in-process cache. pkg/dcache provides a
// disk-persisted implementation of the same interface for callers that
// want the cache to survive across CLI invocations.
type memCache struct {
	entries map[string]refs.DefUse
}

// NewMemCache creates an empty in-memory Cache.
func NewMemCache() Cache {
	return &memCache{entries: make(map[string]refs.DefUse)}
}

func (c *memCache) Get(key string) (refs.DefUse, bool) {
	du, ok := c.entries[key]
	return du, ok
}

func (c *memCache) Set(key string, du refs.DefUse) {
	c.entries[key] = du
}

func (c *memCache) Reset() {
	c.entries = make(map[string]refs.DefUse)
}
