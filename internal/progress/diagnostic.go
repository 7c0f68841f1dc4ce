// internal/progress/diagnostic.go
package progress

import "sync"

// DefaultDiagnosticLimit caps each process's captured stderr at 1 MiB.
const DefaultDiagnosticLimit = 1 << 20

// truncationMarker is appended exactly once when a process writes more
// diagnostics than the buffer keeps.
const truncationMarker = "\n... [output truncated]"

// DiagnosticBuffer accumulates one process stream's text for post-failure
// inspection. It keeps the first limit bytes, appends a truncation marker
// once, and drops everything after that. The total therefore never exceeds
// the limit plus the marker.
type DiagnosticBuffer struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

// NewDiagnosticBuffer returns a buffer keeping at most limit bytes. A non
// positive limit selects DefaultDiagnosticLimit.
func NewDiagnosticBuffer(limit int) *DiagnosticBuffer {
	if limit <= 0 {
		limit = DefaultDiagnosticLimit
	}
	return &DiagnosticBuffer{limit: limit}
}

// Write implements io.Writer and never fails; overflow is recorded with the
// truncation marker instead of an error.
func (d *DiagnosticBuffer) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.truncated {
		return len(p), nil
	}
	room := d.limit - len(d.buf)
	if len(p) <= room {
		d.buf = append(d.buf, p...)
		return len(p), nil
	}
	d.buf = append(d.buf, p[:room]...)
	d.buf = append(d.buf, truncationMarker...)
	d.truncated = true
	return len(p), nil
}

// String returns the accumulated text.
func (d *DiagnosticBuffer) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.buf)
}

// Len returns the accumulated size in bytes.
func (d *DiagnosticBuffer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

// Truncated reports whether the limit was hit.
func (d *DiagnosticBuffer) Truncated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.truncated
}
