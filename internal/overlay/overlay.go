// Package overlay turns raw pointer signals into feature events for a
// gridded tile layer.
//
// The overlay is Idle until the pointer rests on a cell holding a feature,
// then Hovering until the cell changes. Move signals are throttled, click
// signals are not. State is guarded by one lock and events are published
// after it is released, so subscribers may read from the overlay. Move
// handling additionally holds a dispatch lock from resolution until its
// events and cursor changes are delivered; subscribers must not feed move
// signals or call Deactivate synchronously.
package overlay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"utfgrid/internal/events"
	"utfgrid/internal/gridcache"
	"utfgrid/internal/metrics"
	"utfgrid/internal/resolver"
	"utfgrid/internal/throttle"
	"utfgrid/internal/tile"
	"utfgrid/internal/transport"
)

const cursorPointer = "pointer"

// Signal is one pointer signal from the host. LatLng is nil for signals that
// did not come from a pointer, such as keyboard activation.
type Signal struct {
	LatLng *tile.LatLng
	Zoom   int
}

// Hover is a snapshot of the hover state.
type Hover struct {
	Data      json.RawMessage
	Tile      string
	CellToken string
}

type Overlay struct {
	mu   sync.Mutex
	opts Options

	// dispatch orders move transitions with their delivery.
	dispatch sync.Mutex

	source   tile.Source
	cache    *gridcache.Cache
	resolver *resolver.Resolver
	emitter  *events.Emitter
	moves    *throttle.Throttler[Signal]

	active       bool
	connected    bool
	reconnect    *time.Timer
	reconnectSeq uint64

	hover Hover

	transport   transport.Transport
	client      *http.Client
	concurrency int
	projection  tile.Projection
	cursor      Cursor
	postLoad    gridcache.PostLoadFunc
	logger      *zap.Logger
}

// New builds an inactive overlay fetching grids from source.
func New(source tile.Source, opts Options, options ...Option) *Overlay {
	o := &Overlay{
		opts:        opts,
		source:      source,
		concurrency: 4,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.transport == nil {
		o.transport = defaultTransport(opts, o.client, o.concurrency, o.logger)
	}

	o.emitter = events.NewEmitter(o.logger)
	o.cache = gridcache.New(gridcache.Options{
		Transport: o.transport,
		PostLoad:  o.postLoad,
		OnError:   o.fetchFailed,
		Timeout:   opts.FetchTimeout,
		Logger:    o.logger,
	})
	o.resolver = resolver.New(o.cache, o.projection, opts.TileSize, opts.Resolution)
	o.moves = throttle.New(opts.MouseInterval, o.handleMove)
	return o
}

// Events returns the overlay's event emitter.
func (o *Overlay) Events() *events.Emitter { return o.emitter }

// Cache returns the overlay's grid cache.
func (o *Overlay) Cache() *gridcache.Cache { return o.cache }

// Activate starts a fresh overlay lifetime and connects pointer handling.
func (o *Overlay) Activate() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return
	}
	o.cache.Clear()
	o.hover = Hover{}
	o.active = true
	o.connected = true
	o.logger.Info("Overlay activated", zap.String("transport", o.transport.Name()))
}

// Deactivate disconnects pointer handling and resets the cursor.
func (o *Overlay) Deactivate() {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	o.active = false
	o.disconnectLocked()
	o.mu.Unlock()

	o.dispatch.Lock()
	o.setCursor("")
	o.dispatch.Unlock()
	o.logger.Info("Overlay deactivated")
}

// Move handles a pointer move signal, subject to the move throttle.
func (o *Overlay) Move(sig Signal) {
	o.mu.Lock()
	connected := o.connected
	o.mu.Unlock()

	if connected {
		o.moves.Call(sig)
	}
}

// Click handles a click signal. Clicks are reported whether or not a
// feature is under the pointer.
func (o *Overlay) Click(sig Signal) {
	o.mu.Lock()
	if !o.connected {
		o.mu.Unlock()
		return
	}
	ev := events.FeatureEvent{Type: events.KindClick}
	if sig.LatLng != nil {
		ev = featureEvent(events.KindClick, o.resolver.Resolve(*sig.LatLng, sig.Zoom))
	}
	o.mu.Unlock()

	o.publish(ev)
}

func (o *Overlay) handleMove(sig Signal) {
	if sig.LatLng == nil {
		return
	}

	o.dispatch.Lock()
	defer o.dispatch.Unlock()

	o.mu.Lock()
	if !o.connected {
		o.mu.Unlock()
		return
	}

	res := o.resolver.Resolve(*sig.LatLng, sig.Zoom)

	var out []events.Event
	var cursors []string
	if res.CellToken != o.hover.CellToken {
		if o.hover.Data != nil {
			out = append(out, events.FeatureEvent{
				Type:      events.KindMouseOut,
				LatLng:    sig.LatLng,
				Data:      o.hover.Data,
				Tile:      o.hover.Tile,
				CellToken: o.hover.CellToken,
			})
			cursors = append(cursors, "")
		}
		if res.Data != nil {
			out = append(out, featureEvent(events.KindMouseOver, res))
			cursors = append(cursors, cursorPointer)
		}
		o.hover = Hover{Data: res.Data, Tile: res.TileID(), CellToken: res.CellToken}
	} else if res.Data != nil {
		out = append(out, featureEvent(events.KindMouseMove, res))
	}
	o.mu.Unlock()

	for i, ev := range out {
		o.publish(ev)
		if i < len(cursors) {
			o.setCursor(cursors[i])
		}
	}
}

// BoxZoomStart disconnects pointer handling for the duration of the gesture.
func (o *Overlay) BoxZoomStart() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		o.disconnectLocked()
	}
}

// BoxZoomEnd reconnects pointer handling after ReconnectDelay, which
// swallows the click most hosts fire when the gesture completes.
func (o *Overlay) BoxZoomEnd() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active {
		return
	}
	o.stopReconnectLocked()
	seq := o.reconnectSeq
	o.reconnect = time.AfterFunc(o.opts.ReconnectDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.active && o.reconnectSeq == seq {
			o.connected = true
			o.reconnect = nil
		}
	})
}

func (o *Overlay) disconnectLocked() {
	o.connected = false
	o.stopReconnectLocked()
	o.moves.Cancel()
}

func (o *Overlay) stopReconnectLocked() {
	o.reconnectSeq++
	if o.reconnect != nil {
		o.reconnect.Stop()
		o.reconnect = nil
	}
}

// Connected reports whether pointer signals are being handled.
func (o *Overlay) Connected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connected
}

// TileEnter asks for the grid of a tile that came into view.
func (o *Overlay) TileEnter(key tile.Key) {
	key = o.resolver.WrapKey(key)

	o.mu.Lock()
	src := o.source
	o.mu.Unlock()

	o.cache.Ensure(key, src.URL(key))
}

// Query resolves ll without touching hover state. When the tile is not
// cached yet it is requested and the absent result is returned.
func (o *Overlay) Query(ll tile.LatLng, zoom int) resolver.Result {
	res := o.resolver.Resolve(ll, zoom)
	if !res.Cached {
		o.TileEnter(res.Tile)
	}
	return res
}

// SetURL switches to a new URL template and drops every cached grid.
func (o *Overlay) SetURL(pattern string) {
	o.SetSource(tile.NewTemplate(pattern))
}

// SetSource switches tile source and drops every cached grid.
func (o *Overlay) SetSource(src tile.Source) {
	o.mu.Lock()
	o.cache.Clear()
	o.source = src
	o.mu.Unlock()
}

// Redraw drops every cached grid; the host re-enters visible tiles.
func (o *Overlay) Redraw() {
	o.cache.Clear()
}

// Hover returns the current hover state.
func (o *Overlay) Hover() Hover {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hover
}

func (o *Overlay) fetchFailed(key tile.Key, url string, err error) {
	o.publish(events.ErrorEvent{Err: err, Tile: key.String(), URL: url})
}

func (o *Overlay) publish(ev events.Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Kind())).Inc()
	o.logger.Debug("Overlay event", zap.String("kind", string(ev.Kind())))
	o.emitter.Publish(ev)
}

func (o *Overlay) setCursor(cursor string) {
	if o.opts.PointerCursor && o.cursor != nil {
		o.cursor.SetCursor(cursor)
	}
}

func featureEvent(kind events.Kind, res resolver.Result) events.FeatureEvent {
	return events.FeatureEvent{
		Type:      kind,
		LatLng:    res.LatLng,
		Data:      res.Data,
		ID:        res.ID,
		Tile:      res.TileID(),
		CellToken: res.CellToken,
	}
}
