// internal/preview/extractor.go
package preview

import (
	"bytes"
	"encoding/base64"
	"io"
	"sync"
	"time"

	"upscalepipe/internal/event"
)

// PNG stills arrive back to back on the encoder's standard output. The
// 8 byte signature opens each image and the fixed IEND chunk tail closes
// it, so frames can be cut out of the stream without decoding them.
var (
	frameStart = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	frameEnd   = []byte{0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}
)

const (
	// DefaultMaxBuffer bounds the reassembly accumulator at 5 MiB. A one
	// fps scaled still is far smaller, so reaching the bound means the
	// stream is not producing valid frames and holding more bytes cannot
	// recover it.
	DefaultMaxBuffer = 5 << 20

	// DefaultMinInterval spaces preview emissions at 500 ms.
	DefaultMinInterval = 500 * time.Millisecond
)

// Extractor reassembles marker-delimited PNG frames from an arbitrary
// chunking of the encoder's standard-output stream and publishes them as
// throttled preview events. Frames arriving inside a throttle window are
// discarded, not queued. On overflow the accumulator is reset, dropping the
// partial frame; losing a preview is acceptable, unbounded growth is not.
type Extractor struct {
	emitter  *event.Emitter
	throttle *event.Throttle
	max      int
	buf      []byte

	mu    sync.Mutex
	seen  int
	drops int
}

var _ io.Writer = (*Extractor)(nil)

// NewExtractor returns an extractor publishing to emitter. A non-positive
// maxBuffer selects DefaultMaxBuffer; a nil throttle gets the default
// interval on the wall clock.
func NewExtractor(emitter *event.Emitter, maxBuffer int, throttle *event.Throttle) *Extractor {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	if throttle == nil {
		throttle = event.NewThrottle(DefaultMinInterval, nil)
	}
	return &Extractor{emitter: emitter, throttle: throttle, max: maxBuffer}
}

// Write consumes one stdout chunk. The chunk may be reused by the caller
// once Write returns. Write never fails.
func (x *Extractor) Write(chunk []byte) (int, error) {
	if len(x.buf)+len(chunk) > x.max {
		x.buf = x.buf[:0]
		if len(chunk) > x.max {
			return len(chunk), nil
		}
	}
	x.buf = append(x.buf, chunk...)
	x.extract()
	return len(chunk), nil
}

// extract slices every complete frame out of the accumulator and keeps the
// remainder for the next chunk. The end marker search begins past the start
// marker, so a frame's end index always follows its start index.
func (x *Extractor) extract() {
	for {
		start := bytes.Index(x.buf, frameStart)
		if start < 0 {
			return
		}
		rel := bytes.Index(x.buf[start+len(frameStart):], frameEnd)
		if rel < 0 {
			if start > 0 {
				x.buf = x.buf[start:]
			}
			return
		}
		end := start + len(frameStart) + rel + len(frameEnd)
		x.publish(x.buf[start:end])
		x.buf = x.buf[end:]
	}
}

// publish emits the frame unless it falls inside the throttle window.
func (x *Extractor) publish(frame []byte) {
	x.mu.Lock()
	x.seen++
	x.mu.Unlock()

	if !x.throttle.Allow() {
		x.mu.Lock()
		x.drops++
		x.mu.Unlock()
		return
	}
	x.emitter.Emit(event.Event{
		Type:         event.TypePreviewFrame,
		Message:      "Preview frame",
		PreviewFrame: base64.StdEncoding.EncodeToString(frame),
	})
}

// Seen returns how many complete frames were cut from the stream,
// including throttled ones.
func (x *Extractor) Seen() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.seen
}

// Dropped returns how many frames the throttle discarded.
func (x *Extractor) Dropped() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.drops
}

// Buffered returns the current accumulator size.
func (x *Extractor) Buffered() int { return len(x.buf) }
