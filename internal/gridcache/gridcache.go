// Package gridcache holds the grid documents of the tiles an overlay has
// seen. Each tile is fetched at most once per cache lifetime; concurrent
// requests for the same tile collapse into one transport call. Entries are
// never evicted individually, only by Clear.
package gridcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"utfgrid/internal/grid"
	"utfgrid/internal/metrics"
	"utfgrid/internal/tile"
	"utfgrid/internal/transport"
)

// PostLoadFunc runs after a document has been stored.
type PostLoadFunc func(key tile.Key, doc *grid.Document)

// ErrorFunc receives fetch failures.
type ErrorFunc func(key tile.Key, url string, err error)

// Options configures a Cache. Transport is required.
type Options struct {
	Transport transport.Transport
	PostLoad  PostLoadFunc
	OnError   ErrorFunc
	Timeout   time.Duration
	Logger    *zap.Logger
}

type Cache struct {
	mu         sync.RWMutex
	entries    map[tile.Key]*grid.Document
	pending    map[tile.Key]uint64
	generation uint64

	transport transport.Transport
	callbacks *transport.Registry
	postLoad  PostLoadFunc
	onError   ErrorFunc
	timeout   time.Duration
	logger    *zap.Logger

	inflight int
	settled  *sync.Cond
}

func New(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	postLoad := opts.PostLoad
	if postLoad == nil {
		postLoad = func(tile.Key, *grid.Document) {}
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(tile.Key, string, error) {}
	}

	c := &Cache{
		entries:   make(map[tile.Key]*grid.Document),
		pending:   make(map[tile.Key]uint64),
		transport: opts.Transport,
		callbacks: transport.NewRegistry(),
		postLoad:  postLoad,
		onError:   onError,
		timeout:   opts.Timeout,
		logger:    logger,
	}
	c.settled = sync.NewCond(&c.mu)
	return c
}

// Get returns the cached document for key. It never fetches.
func (c *Cache) Get(key tile.Key) (*grid.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.entries[key]
	return doc, ok
}

// Pending reports whether a fetch for key is in flight.
func (c *Cache) Pending(key tile.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.pending[key]
	return ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure starts fetching url for key unless the key is cached or already
// being fetched. It returns immediately.
func (c *Cache) Ensure(key tile.Key, url string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return
	}
	if _, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	c.pending[key] = gen
	c.inflight++
	c.mu.Unlock()

	metrics.GridFetchesTotal.WithLabelValues(c.transport.Name()).Inc()

	go c.fetch(key, url, gen)
}

func (c *Cache) fetch(key tile.Key, url string, gen uint64) {
	defer c.settle()

	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	var once sync.Once
	c.transport.Fetch(ctx, transport.Request{Key: key, URL: url, Callbacks: c.callbacks}, func(doc *grid.Document, err error) {
		once.Do(func() {
			metrics.GridFetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
			c.complete(key, url, gen, doc, err)
		})
	})
}

func (c *Cache) complete(key tile.Key, url string, gen uint64, doc *grid.Document, err error) {
	c.mu.Lock()
	if g, ok := c.pending[key]; ok && g == gen {
		delete(c.pending, key)
	}

	if err != nil || doc == nil {
		c.mu.Unlock()
		if err == nil {
			err = grid.ErrMalformedDocument
		}
		metrics.GridFetchFailuresTotal.WithLabelValues(c.transport.Name()).Inc()
		c.logger.Warn("Grid fetch failed",
			zap.String("tile", key.String()),
			zap.String("url", url),
			zap.Error(err),
		)
		c.onError(key, url, err)
		return
	}

	if _, exists := c.entries[key]; exists {
		c.mu.Unlock()
		return
	}
	c.entries[key] = doc
	n := len(c.entries)
	c.mu.Unlock()

	metrics.GridCacheEntries.Set(float64(n))
	c.logger.Debug("Grid cached", zap.String("tile", key.String()), zap.Int("entries", n))
	c.postLoad(key, doc)
}

// Clear drops every entry, pending marker and script callback.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[tile.Key]*grid.Document)
	c.pending = make(map[tile.Key]uint64)
	c.generation++
	c.callbacks.Reset()
	c.mu.Unlock()

	metrics.GridCacheEntries.Set(0)
	c.logger.Info("Grid cache cleared", zap.Int("dropped", n))
}

func (c *Cache) settle() {
	c.mu.Lock()
	c.inflight--
	if c.inflight == 0 {
		c.settled.Broadcast()
	}
	c.mu.Unlock()
}

// Wait blocks until no fetch is in flight. Ensure may be called
// concurrently; Wait then also covers the fetches it starts.
func (c *Cache) Wait() {
	c.mu.Lock()
	for c.inflight > 0 {
		c.settled.Wait()
	}
	c.mu.Unlock()
}
