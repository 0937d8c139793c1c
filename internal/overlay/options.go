package overlay

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"utfgrid/internal/gridcache"
	"utfgrid/internal/tile"
	"utfgrid/internal/transport"
)

// Options are the overlay settings a host can change.
type Options struct {
	// Resolution is the cell edge length in pixels.
	Resolution int
	TileSize   int
	// PointerCursor switches the host cursor to "pointer" over features.
	PointerCursor bool
	// MouseInterval is the minimum spacing between handled move signals.
	MouseInterval time.Duration
	// UseJSONP selects the script-callback transport.
	UseJSONP bool
	// ReconnectDelay is how long pointer handling stays off after a box zoom.
	ReconnectDelay time.Duration
	FetchTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		Resolution:     4,
		TileSize:       tile.DefaultSize,
		PointerCursor:  true,
		MouseInterval:  66 * time.Millisecond,
		UseJSONP:       false,
		ReconnectDelay: 100 * time.Millisecond,
		FetchTimeout:   10 * time.Second,
	}
}

// Cursor is the host's pointer-cursor affordance.
type Cursor interface {
	SetCursor(cursor string)
}

// CursorFunc adapts a function to Cursor.
type CursorFunc func(cursor string)

func (f CursorFunc) SetCursor(cursor string) { f(cursor) }

// Option customises collaborators at construction.
type Option func(*Overlay)

// WithTransport replaces the transport chosen from Options.UseJSONP.
func WithTransport(t transport.Transport) Option {
	return func(o *Overlay) { o.transport = t }
}

// WithHTTPClient sets the client used by the default transports.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Overlay) { o.client = c }
}

// WithFetchConcurrency bounds simultaneous grid fetches.
func WithFetchConcurrency(n int) Option {
	return func(o *Overlay) { o.concurrency = n }
}

func WithProjection(p tile.Projection) Option {
	return func(o *Overlay) { o.projection = p }
}

func WithCursor(c Cursor) Option {
	return func(o *Overlay) { o.cursor = c }
}

// WithPostLoad runs fn after each grid document is cached.
func WithPostLoad(fn gridcache.PostLoadFunc) Option {
	return func(o *Overlay) { o.postLoad = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Overlay) { o.logger = l }
}

func defaultTransport(opts Options, client *http.Client, concurrency int, logger *zap.Logger) transport.Transport {
	h := transport.NewHTTP(client, concurrency, logger)
	if opts.UseJSONP {
		return transport.NewScript(h)
	}
	return h
}
