// internal/progress/diagnostic_test.go
package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestDiagnosticBufferKeepsEarlyOutput(t *testing.T) {
	d := NewDiagnosticBuffer(32)
	d.Write([]byte("first line\n"))
	d.Write([]byte("second line\n"))

	got := d.String()
	if got != "first line\nsecond line\n" {
		t.Errorf("unexpected contents: %q", got)
	}
	if d.Truncated() {
		t.Error("buffer under the limit must not report truncation")
	}
}

func TestDiagnosticBufferTruncation(t *testing.T) {
	const limit = 64
	d := NewDiagnosticBuffer(limit)

	chunk := []byte(strings.Repeat("x", 50))
	d.Write(chunk)
	d.Write(chunk)
	d.Write(chunk)

	if !d.Truncated() {
		t.Fatal("expected truncation after overflow")
	}
	got := d.String()
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("expected truncation marker suffix, got %q", got)
	}
	if n := strings.Count(got, truncationMarker); n != 1 {
		t.Errorf("marker must appear exactly once, found %d", n)
	}
	if !strings.HasPrefix(got, strings.Repeat("x", 50)) {
		t.Error("the first chunk must survive intact")
	}
}

func TestDiagnosticBufferLengthBound(t *testing.T) {
	const limit = 128
	d := NewDiagnosticBuffer(limit)
	max := limit + len(truncationMarker)

	// Mixed chunk sizes, including one larger than the whole limit.
	for _, size := range []int{1, 7, 50, 200, 13, 1} {
		d.Write(bytes.Repeat([]byte("y"), size))
		if d.Len() > max {
			t.Fatalf("length %d exceeds limit plus marker %d", d.Len(), max)
		}
	}
	if d.Len() != max {
		t.Errorf("expected saturated buffer of %d bytes, got %d", max, d.Len())
	}
}

func TestDiagnosticBufferDefaultLimit(t *testing.T) {
	d := NewDiagnosticBuffer(0)
	if d.limit != DefaultDiagnosticLimit {
		t.Errorf("expected default limit %d, got %d", DefaultDiagnosticLimit, d.limit)
	}
}
