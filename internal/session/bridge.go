// internal/session/bridge.go
package session

import (
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Bridge moves the generator's standard output into the encoder's standard
// input, honoring pipe backpressure. Disconnect severs the flow without
// closing either stream, so a graceful cancel can shut the encoder's input
// down on its own schedule instead of mid-write.
type Bridge struct {
	logger   hclog.Logger
	stopping func() bool

	mu        sync.Mutex
	connected bool

	done chan struct{}
}

// NewBridge returns an idle bridge. stopping reports whether the owning
// session is mid-cancel, which downgrades stream faults to debug noise; it
// may be nil.
func NewBridge(logger hclog.Logger, stopping func() bool) *Bridge {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if stopping == nil {
		stopping = func() bool { return false }
	}
	return &Bridge{
		logger:   logger.Named("bridge"),
		stopping: stopping,
		done:     make(chan struct{}),
	}
}

// Connect starts pumping src into dst until end of stream, a fault, or
// Disconnect. End of stream while still connected also closes dst, which
// tells the consumer its input is complete.
func (b *Bridge) Connect(src io.Reader, dst io.WriteCloser) {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	go b.run(src, dst)
}

// Disconnect stops the flow without closing either stream. Safe to call at
// any time and more than once.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
}

// Connected reports whether data is still being forwarded.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Done is closed when the pump goroutine has finished.
func (b *Bridge) Done() <-chan struct{} { return b.done }

func (b *Bridge) run(src io.Reader, dst io.WriteCloser) {
	defer close(b.done)
	buf := make([]byte, 64*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if !b.Connected() {
				b.logger.Debug("disconnected, dropping remaining stream")
				return
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				b.report("write to encoder stdin failed", werr)
				return
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				if b.Connected() {
					b.logger.Debug("generator stream complete, closing encoder stdin")
					if cerr := dst.Close(); cerr != nil {
						b.report("closing encoder stdin failed", cerr)
					}
				}
			} else {
				b.report("read from generator stdout failed", rerr)
			}
			return
		}
	}
}

// report logs a stream fault at a severity matching whether the session is
// being stopped on purpose.
func (b *Bridge) report(msg string, err error) {
	if b.stopping() {
		b.logger.Debug(msg, "error", err)
		return
	}
	b.logger.Error(msg, "error", err)
}
