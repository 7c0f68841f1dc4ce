// internal/event/throttle.go
package event

import "time"

// Throttle enforces a minimum wall-clock interval between emissions.
// Callers that lose the race simply drop their payload; nothing is queued
// for later. A zero or negative interval lets everything through.
//
// A throttle belongs to a single goroutine.
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

// NewThrottle returns a throttle with the given minimum interval. now may
// be nil to use the wall clock.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now}
}

// Allow reports whether the caller may emit, and if so starts the next
// window. The first call always passes.
func (t *Throttle) Allow() bool {
	if t.interval <= 0 {
		return true
	}
	n := t.now()
	if !t.last.IsZero() && n.Sub(t.last) < t.interval {
		return false
	}
	t.last = n
	return true
}
