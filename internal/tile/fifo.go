// internal/tile/fifo.go - Bounded FIFO tile cache
package tile

// fifoCache is an insertion-ordered bounded map of tile contexts.
// Eviction removes the earliest-inserted entries before new insertions.
type fifoCache struct {
	cap     int
	order   []string
	entries map[string]*Context
}

func newFIFOCache(cap int) *fifoCache {
	return &fifoCache{
		cap:     cap,
		entries: make(map[string]*Context),
	}
}

// Put inserts or replaces an entry, evicting the oldest while over cap.
// Evicted contexts are returned so callers can react outside any lock.
func (c *fifoCache) Put(key string, ctx *Context) []*Context {
	var evicted []*Context
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.cap && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			if old := c.entries[oldest]; old != nil {
				evicted = append(evicted, old)
			}
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = ctx
	return evicted
}

// Get returns the entry for a key, nil when absent.
func (c *fifoCache) Get(key string) *Context {
	return c.entries[key]
}

// Delete removes an entry without running the eviction callback.
func (c *fifoCache) Delete(key string) {
	if _, exists := c.entries[key]; !exists {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached entries.
func (c *fifoCache) Len() int {
	return len(c.entries)
}

// Keys returns the keys oldest first.
func (c *fifoCache) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Each iterates entries in insertion order.
func (c *fifoCache) Each(fn func(key string, ctx *Context)) {
	for _, k := range c.order {
		fn(k, c.entries[k])
	}
}

// Clear drops everything without eviction callbacks.
func (c *fifoCache) Clear() {
	c.entries = make(map[string]*Context)
	c.order = nil
}
