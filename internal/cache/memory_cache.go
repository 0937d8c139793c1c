package cache

import (
	"container/list"
	"sync"
)

type memoryEntry struct {
	key TileKey
	doc []byte
}

// MemoryStats counts lookups and evictions since the cache was created.
type MemoryStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Bytes     int64
}

// MemoryCache keeps the most recently served grid documents in memory.
// The front of recent is the most recently used document.
type MemoryCache struct {
	mu       sync.Mutex
	maxTiles int
	byKey    map[TileKey]*list.Element
	recent   *list.List
	stats    MemoryStats
}

// NewMemoryCache holds up to maxTiles documents, and never fewer than one.
func NewMemoryCache(maxTiles int) *MemoryCache {
	return &MemoryCache{
		maxTiles: max(maxTiles, 1),
		byKey:    make(map[TileKey]*list.Element),
		recent:   list.New(),
	}
}

func (c *MemoryCache) Has(key TileKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.byKey[key]
	return ok
}

func (c *MemoryCache) Get(key TileKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.recent.MoveToFront(el)
	return el.Value.(*memoryEntry).doc, true
}

// Set stores a copy of doc, so callers may reuse their buffer.
func (c *MemoryCache) Set(key TileKey, doc []byte) {
	stored := append([]byte(nil), doc...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		e := el.Value.(*memoryEntry)
		c.stats.Bytes += int64(len(stored) - len(e.doc))
		e.doc = stored
		c.recent.MoveToFront(el)
		return
	}

	c.byKey[key] = c.recent.PushFront(&memoryEntry{key: key, doc: stored})
	c.stats.Bytes += int64(len(stored))
	for c.recent.Len() > c.maxTiles {
		c.evictOldestLocked()
	}
}

func (c *MemoryCache) evictOldestLocked() {
	el := c.recent.Back()
	e := c.recent.Remove(el).(*memoryEntry)
	delete(c.byKey, e.key)
	c.stats.Bytes -= int64(len(e.doc))
	c.stats.Evictions++
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

func (c *MemoryCache) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Clear drops every document; the hit and miss counters are kept.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byKey = make(map[TileKey]*list.Element)
	c.recent.Init()
	c.stats.Bytes = 0
}
