// Package throttle rate-limits a stream of values.
package throttle

import (
	"sync"
	"time"
)

// Throttler delivers at most one value per interval.
//
// The first value after a quiet period is delivered immediately on the
// caller's goroutine. Values arriving during the interval are coalesced and
// the most recent one is delivered when the interval elapses, which starts a
// new interval.
type Throttler[T any] struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func(T)
	timer    *time.Timer
	pending  bool
	latest   T
	seq      uint64 // detects stale timer callbacks
}

// New returns a throttler calling fn at most once per interval.
func New[T any](interval time.Duration, fn func(T)) *Throttler[T] {
	return &Throttler[T]{
		interval: interval,
		fn:       fn,
	}
}

// Call offers v to the throttler.
func (t *Throttler[T]) Call(v T) {
	t.mu.Lock()
	if t.interval <= 0 {
		t.mu.Unlock()
		t.fn(v)
		return
	}
	if t.timer != nil {
		t.latest = v
		t.pending = true
		t.mu.Unlock()
		return
	}
	t.startLocked()
	t.mu.Unlock()

	t.fn(v)
}

func (t *Throttler[T]) startLocked() {
	t.seq++
	seq := t.seq
	t.timer = time.AfterFunc(t.interval, func() { t.fire(seq) })
}

func (t *Throttler[T]) fire(seq uint64) {
	t.mu.Lock()
	if seq != t.seq {
		t.mu.Unlock()
		return
	}
	if !t.pending {
		t.timer = nil
		t.mu.Unlock()
		return
	}

	v := t.latest
	var zero T
	t.latest = zero
	t.pending = false
	t.startLocked()
	t.mu.Unlock()

	t.fn(v)
}

// Cancel drops any coalesced value and ends the current interval.
func (t *Throttler[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
	t.pending = false
	var zero T
	t.latest = zero
}

// Pending reports whether a coalesced value is waiting for delivery.
func (t *Throttler[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
