// Package events is the overlay's publish/subscribe surface. Handlers are
// called synchronously, in subscription order, on the publishing goroutine.
package events

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"utfgrid/internal/tile"
)

// Kind names an event type.
type Kind string

const (
	KindError     Kind = "error"
	KindClick     Kind = "click"
	KindMouseOver Kind = "mouseover"
	KindMouseOut  Kind = "mouseout"
	KindMouseMove Kind = "mousemove"
)

// Event is implemented by every published payload.
type Event interface {
	Kind() Kind
}

// ErrorEvent reports a failed grid fetch.
type ErrorEvent struct {
	Err  error
	Tile string
	URL  string
}

func (ErrorEvent) Kind() Kind { return KindError }

// FeatureEvent is emitted for click, mouseover, mouseout and mousemove.
// Data is nil when no feature is under the pointer; Tile is empty when the
// tile was not cached.
type FeatureEvent struct {
	Type      Kind            `json:"type"`
	LatLng    *tile.LatLng    `json:"latlng"`
	Data      json.RawMessage `json:"data"`
	ID        any             `json:"id,omitempty"`
	Tile      string          `json:"tile,omitempty"`
	CellToken string          `json:"cell_token,omitempty"`
}

func (e FeatureEvent) Kind() Kind { return e.Type }

// Handler receives published events.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription uint64

type subscriber struct {
	id      Subscription
	kind    Kind // empty matches every kind
	handler Handler
}

// Emitter fans events out to subscribers.
type Emitter struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID Subscription
	logger *zap.Logger
}

// NewEmitter creates an emitter. Handler panics are recovered and logged.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{logger: logger}
}

// Subscribe registers handler for events of kind.
func (e *Emitter) Subscribe(kind Kind, handler Handler) Subscription {
	return e.add(kind, handler)
}

// SubscribeAll registers handler for every event kind.
func (e *Emitter) SubscribeAll(handler Handler) Subscription {
	return e.add("", handler)
}

func (e *Emitter) add(kind Kind, handler Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.subs = append(e.subs, subscriber{id: e.nextID, kind: kind, handler: handler})
	return e.nextID
}

// Unsubscribe removes a subscription. It reports whether it was registered.
func (e *Emitter) Unsubscribe(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subs {
		if s.id == sub {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers ev to every matching subscriber.
func (e *Emitter) Publish(ev Event) {
	e.mu.RLock()
	subs := make([]subscriber, 0, len(e.subs))
	for _, s := range e.subs {
		if s.kind == "" || s.kind == ev.Kind() {
			subs = append(subs, s)
		}
	}
	e.mu.RUnlock()

	for _, s := range subs {
		e.deliver(s, ev)
	}
}

func (e *Emitter) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Event handler panicked",
				zap.String("kind", string(ev.Kind())),
				zap.Uint64("subscription", uint64(s.id)),
				zap.Any("panic", r),
			)
		}
	}()
	s.handler(ev)
}
