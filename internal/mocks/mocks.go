// Package mocks provides test doubles shared by the package tests: a
// manually advanced clock and a few misbehaving streams.
package mocks

import (
	"bytes"
	"sync"
	"time"
)

// Clock is a manually advanced time source for throttle and deadline
// tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{current: start}
}

// Now returns the frozen time; pass the method where a time source is
// injected.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// ClosableBuffer is a write sink that records whether and how often it was
// closed.
type ClosableBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closes int
}

func (b *ClosableBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *ClosableBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

// String returns the accumulated bytes as text.
func (b *ClosableBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Len returns the accumulated size.
func (b *ClosableBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Closed reports whether Close was called at least once.
func (b *ClosableBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes > 0
}

// Closes returns how many times Close was called.
func (b *ClosableBuffer) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// FailingWriter accepts FailAfter bytes and then returns Err from every
// further Write. Close always succeeds.
type FailingWriter struct {
	FailAfter int
	Err       error

	mu      sync.Mutex
	written int
}

func (w *FailingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written >= w.FailAfter {
		return 0, w.Err
	}
	n := len(p)
	if w.written+n > w.FailAfter {
		n = w.FailAfter - w.written
	}
	w.written += n
	if n < len(p) {
		return n, w.Err
	}
	return n, nil
}

func (w *FailingWriter) Close() error { return nil }

// Written returns how many bytes were accepted before the failure.
func (w *FailingWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}
