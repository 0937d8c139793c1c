package throttle

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	vals []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	r.vals = append(r.vals, v)
	r.mu.Unlock()
}

func (r *recorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.vals))
	copy(out, r.vals)
	return out
}

func TestThrottler_LeadingEdgeIsImmediate(t *testing.T) {
	var r recorder
	th := New(50*time.Millisecond, r.add)

	th.Call(1)

	if got := r.get(); len(got) != 1 || got[0] != 1 {
		t.Errorf("vals = %v, want [1]", got)
	}
}

func TestThrottler_TrailingEdgeCarriesLatest(t *testing.T) {
	var r recorder
	th := New(50*time.Millisecond, r.add)

	for i := 1; i <= 10; i++ {
		th.Call(i)
	}

	time.Sleep(120 * time.Millisecond)

	got := r.get()
	if len(got) != 2 {
		t.Fatalf("vals = %v, want 2 deliveries", got)
	}
	if got[0] != 1 || got[1] != 10 {
		t.Errorf("vals = %v, want [1 10]", got)
	}
}

func TestThrottler_SpacedCalls(t *testing.T) {
	var r recorder
	th := New(30*time.Millisecond, r.add)

	th.Call(1)
	time.Sleep(60 * time.Millisecond)
	th.Call(2)
	time.Sleep(60 * time.Millisecond)
	th.Call(3)

	got := r.get()
	if len(got) != 3 {
		t.Errorf("vals = %v, want 3 deliveries", got)
	}
}

func TestThrottler_Cancel(t *testing.T) {
	var r recorder
	th := New(40*time.Millisecond, r.add)

	th.Call(1)
	th.Call(2)
	if !th.Pending() {
		t.Error("Pending() = false, want true")
	}
	th.Cancel()

	time.Sleep(80 * time.Millisecond)

	if got := r.get(); len(got) != 1 {
		t.Errorf("vals = %v, want only the leading call", got)
	}
	if th.Pending() {
		t.Error("Pending() = true after Cancel")
	}

	th.Call(3)
	if got := r.get(); len(got) != 2 || got[1] != 3 {
		t.Errorf("vals = %v, want a fresh leading call after Cancel", got)
	}
}

func TestThrottler_ZeroInterval(t *testing.T) {
	var r recorder
	th := New(0, r.add)

	th.Call(1)
	th.Call(2)

	if got := r.get(); len(got) != 2 {
		t.Errorf("vals = %v, want every call delivered", got)
	}
}
