// internal/progress/parser.go
package progress

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"sync"

	"upscalepipe/internal/event"
)

// The encoder rewrites one statistics line in place on standard error, so
// fields arrive space padded and a single chunk can carry several
// revisions. The last occurrence in a chunk is the current one.
var (
	frameRegex = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRegex   = regexp.MustCompile(`fps=\s*([\d.]+)`)
)

// maxCarry bounds the unterminated line tail carried between chunks. A real
// statistics line is around a hundred bytes; anything past this is not one.
const maxCarry = 1024

// Parser scans the encoder's standard-error stream for progress statistics
// and publishes progress events. Chunks arrive at arbitrary boundaries, so
// the tail of the last unterminated line is carried into the next scan.
// Every chunk is also copied verbatim into the diagnostic buffer.
type Parser struct {
	totalFrames int
	emitter     *event.Emitter
	diag        *DiagnosticBuffer
	stopping    func() bool

	tail []byte

	mu        sync.Mutex
	lastFrame int
	lastFPS   float64
}

var _ io.Writer = (*Parser)(nil)

// NewParser returns a parser publishing to emitter. totalFrames of zero
// disables percentages. stopping reports whether the owning session is mid
// cancel, which switches the event message; it may be nil.
func NewParser(totalFrames int, emitter *event.Emitter, diag *DiagnosticBuffer, stopping func() bool) *Parser {
	if stopping == nil {
		stopping = func() bool { return false }
	}
	return &Parser{
		totalFrames: totalFrames,
		emitter:     emitter,
		diag:        diag,
		stopping:    stopping,
	}
}

// Write consumes one stderr chunk. The chunk may be reused by the caller
// once Write returns. Write never fails.
func (p *Parser) Write(chunk []byte) (int, error) {
	if p.diag != nil {
		p.diag.Write(chunk)
	}

	buf := chunk
	if len(p.tail) > 0 {
		buf = make([]byte, 0, len(p.tail)+len(chunk))
		buf = append(buf, p.tail...)
		buf = append(buf, chunk...)
	}

	frame, ok := p.scan(buf)
	p.tail = carryTail(buf)
	if ok {
		p.publish(frame)
	}
	return len(chunk), nil
}

// scan extracts the most recent frame and fps values from buf. A frame
// match is required for an event; fps falls back to the last known value
// when the chunk does not carry one.
func (p *Parser) scan(buf []byte) (int, bool) {
	frames := frameRegex.FindAllSubmatch(buf, -1)
	if len(frames) == 0 {
		return 0, false
	}
	frame, err := strconv.Atoi(string(frames[len(frames)-1][1]))
	if err != nil {
		return 0, false
	}

	p.mu.Lock()
	if m := fpsRegex.FindAllSubmatch(buf, -1); len(m) > 0 {
		if v, err := strconv.ParseFloat(string(m[len(m)-1][1]), 64); err == nil {
			p.lastFPS = v
		}
	}
	p.lastFrame = frame
	p.mu.Unlock()
	return frame, true
}

func (p *Parser) publish(frame int) {
	ev := event.Event{
		Type:         event.TypeProgress,
		CurrentFrame: frame,
		TotalFrames:  p.totalFrames,
		FPS:          p.LastFPS(),
		Percentage:   percent(frame, p.totalFrames),
	}
	switch {
	case p.stopping():
		ev.Message = "Stopping processing"
		ev.IsStopping = true
	case p.totalFrames > 0:
		ev.Message = fmt.Sprintf("Processing frame %d/%d", frame, p.totalFrames)
	default:
		ev.Message = fmt.Sprintf("Processing frame %d", frame)
	}
	p.emitter.Emit(ev)
}

// LastFrame returns the most recently parsed frame number.
func (p *Parser) LastFrame() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame
}

// LastFPS returns the most recently parsed encoding rate.
func (p *Parser) LastFPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFPS
}

// percent converts a frame position into a 0 to 100 progress value. An
// unknown total yields zero.
func percent(frame, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(frame) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// carryTail returns a copy of the bytes after the last line break, or nil
// when the buffer ends on one. Tails longer than maxCarry are dropped
// rather than grown without bound.
func carryTail(buf []byte) []byte {
	i := bytes.LastIndexAny(buf, "\r\n")
	tail := buf
	if i >= 0 {
		tail = buf[i+1:]
	}
	if len(tail) == 0 || len(tail) > maxCarry {
		return nil
	}
	out := make([]byte, len(tail))
	copy(out, tail)
	return out
}
