// internal/preflight/preflight_test.go
package preflight

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestEstimateMemoryScalesWithGeometry(t *testing.T) {
	small, err := EstimateMemory(640, 360, 2)
	if err != nil {
		t.Skipf("system memory not readable here: %v", err)
	}
	large, err := EstimateMemory(3840, 2160, 4)
	if err != nil {
		t.Fatalf("EstimateMemory failed: %v", err)
	}

	if small.EstimatedGB <= 0 {
		t.Error("estimate must be positive")
	}
	if large.EstimatedGB <= small.EstimatedGB {
		t.Errorf("larger geometry must estimate more memory: %.2f vs %.2f",
			large.EstimatedGB, small.EstimatedGB)
	}
	if small.AvailableGB <= 0 {
		t.Error("available memory must be positive on a live system")
	}
}

func TestDiskSpace(t *testing.T) {
	free, err := DiskSpace(filepath.Join(t.TempDir(), "out.mp4"))
	if err != nil {
		t.Skipf("disk usage not readable here: %v", err)
	}
	if free <= 0 {
		t.Error("expected positive free space on the temp volume")
	}
}

func TestFindExecutable(t *testing.T) {
	if _, err := FindExecutable("definitely-not-a-real-tool-xyz"); err == nil {
		t.Error("expected an error for a missing tool")
	} else if !strings.Contains(err.Error(), "PATH") {
		t.Errorf("error should mention PATH, got %v", err)
	}
}

func TestRunCollectsMissingTools(t *testing.T) {
	report := Run(Check{
		GeneratorExecutable: "definitely-not-a-real-tool-gen",
		EncoderExecutable:   "definitely-not-a-real-tool-enc",
		ProbeExecutable:     "definitely-not-a-real-tool-probe",
	})

	if report.OK() {
		t.Fatal("missing tools must fail the preflight")
	}
	if len(report.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(report.Errors), report.Errors)
	}
	for _, role := range []string{"generator", "encoder", "prober"} {
		found := false
		for _, e := range report.Errors {
			if strings.Contains(e, role) {
				found = true
			}
		}
		if !found {
			t.Errorf("expected an error naming the %s", role)
		}
	}
}

func TestRunWarnsWithoutFailing(t *testing.T) {
	report := Run(Check{
		GeneratorExecutable: "definitely-not-a-real-tool-gen",
		EncoderExecutable:   "definitely-not-a-real-tool-enc",
		ProbeExecutable:     "definitely-not-a-real-tool-probe",
		OutputPath:          filepath.Join(t.TempDir(), "out.mp4"),
		Width:               1920,
		Height:              1080,
		Scale:               2,
	})

	// Resource findings never join the hard errors.
	if len(report.Errors) != 3 {
		t.Errorf("resource checks must not add errors, got %v", report.Errors)
	}
}

func TestEstimateOutputGB(t *testing.T) {
	tests := []struct {
		name   string
		input  int64
		scale  int
		expect float64
	}{
		{"two gigabytes doubled", 2 << 30, 2, 8},
		{"zero input", 0, 2, 0},
		{"degenerate scale", 1 << 30, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateOutputGB(tt.input, tt.scale); got != tt.expect {
				t.Errorf("estimateOutputGB(%d, %d) = %v, expected %v", tt.input, tt.scale, got, tt.expect)
			}
		})
	}
}
