package events

import (
	"sync"
	"time"
)

// Record is a published event with its arrival time.
type Record struct {
	At    time.Time `json:"at"`
	Kind  Kind      `json:"kind"`
	Event any       `json:"event"`
}

// Recorder keeps the most recent events in a fixed-size ring.
type Recorder struct {
	mu   sync.Mutex
	buf  []Record
	next int
	full bool
}

// NewRecorder keeps at most size events.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = 1
	}
	return &Recorder{buf: make([]Record, size)}
}

// Handle stores ev. It is meant to be passed to Emitter.SubscribeAll.
func (r *Recorder) Handle(ev Event) {
	rec := Record{At: time.Now(), Kind: ev.Kind(), Event: ev}
	if e, ok := ev.(ErrorEvent); ok {
		rec.Event = map[string]string{"error": e.Err.Error(), "tile": e.Tile, "url": e.URL}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Events returns the stored events, oldest first.
func (r *Recorder) Events() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Record, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Record, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
