// internal/event/emitter.go
package event

import "sync"

// DefaultBuffer is the emitter's channel capacity when none is given.
const DefaultBuffer = 64

// Emitter publishes events to a single consumer over a bounded channel.
// Emit never blocks the producing goroutine: when the buffer is full the
// oldest undelivered event is dropped so the newest state wins. At most one
// terminal event is delivered, after which the channel is closed and all
// further emits are ignored.
type Emitter struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewEmitter returns an emitter with the given channel capacity. A
// non-positive capacity selects DefaultBuffer.
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Events returns the consumer side of the stream. The channel is closed
// after the terminal event, or by Close.
func (e *Emitter) Events() <-chan Event { return e.ch }

// Emit queues a non-terminal event, evicting the oldest buffered event when
// the consumer has fallen behind.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.send(ev)
}

// EmitTerminal delivers ev as the final event and closes the stream. Only
// the first terminal emit has any effect.
func (e *Emitter) EmitTerminal(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.send(ev)
	e.closed = true
	close(e.ch)
}

// Close ends the stream without a terminal event. Safe to call more than
// once and after EmitTerminal.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// send places ev on the channel, making room by dropping the oldest
// buffered event if needed. The emitter lock is held, so this goroutine is
// the only sender and the loop is bounded.
func (e *Emitter) send(ev Event) {
	for {
		select {
		case e.ch <- ev:
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}
