// internal/preflight/preflight.go

// Package preflight evaluates the host before a run starts: required tools
// on PATH, enough memory for the model, enough disk for the output. Tight
// resources are warnings, not failures, because the estimates are rough by
// nature.
package preflight

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryEstimate compares the pipeline's expected working set against what
// the host can provide.
type MemoryEstimate struct {
	EstimatedGB     float64
	AvailableGB     float64
	RecommendedSafe bool
}

// Check names everything a run needs from the host.
type Check struct {
	GeneratorExecutable string
	EncoderExecutable   string
	ProbeExecutable     string

	OutputPath string

	// Source geometry and the upscale factor, for the memory estimate.
	Width  int
	Height int
	Scale  int

	// InputSizeBytes sizes the disk space warning.
	InputSizeBytes int64
}

// Report collects the preflight results. Errors block the run; warnings
// are advisory.
type Report struct {
	GeneratorPath string
	EncoderPath   string
	ProbePath     string

	Memory     *MemoryEstimate
	FreeDiskGB float64

	Errors   []string
	Warnings []string
}

// OK reports whether the run can start.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Run evaluates every precondition in c.
func Run(c Check) *Report {
	report := &Report{}

	report.GeneratorPath = resolveTool(report, "generator", c.GeneratorExecutable)
	report.EncoderPath = resolveTool(report, "encoder", c.EncoderExecutable)
	report.ProbePath = resolveTool(report, "prober", c.ProbeExecutable)

	if c.Width > 0 && c.Height > 0 {
		est, err := EstimateMemory(c.Width, c.Height, c.Scale)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("could not read system memory: %v", err))
		} else {
			report.Memory = est
			if !est.RecommendedSafe {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"estimated memory use %.1f GB is close to the %.1f GB available; processing may swap or fail",
					est.EstimatedGB, est.AvailableGB))
			}
		}
	}

	if c.OutputPath != "" {
		free, err := DiskSpace(c.OutputPath)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("could not read disk usage: %v", err))
		} else {
			report.FreeDiskGB = free
			if need := estimateOutputGB(c.InputSizeBytes, c.Scale); need > 0 && free < need {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"about %.1f GB of output expected but only %.1f GB free on the output volume",
					need, free))
			}
		}
	}

	return report
}

// FindExecutable resolves name on PATH.
func FindExecutable(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}

// EstimateMemory sizes the decode plus inference working set for a source
// of the given geometry. The model holds several frames at both scales in
// flight and needs a fixed chunk of its own on top.
func EstimateMemory(width, height, scale int) (*MemoryEstimate, error) {
	const (
		bytesPerPixel  = 4
		framesInFlight = 8
		modelBytes     = 2 << 30
		overheadFactor = 1.5
		safetyMargin   = 0.8
	)
	if scale < 1 {
		scale = 1
	}

	inFrame := float64(width * height * 3 * bytesPerPixel)
	outFrame := float64(width * scale * height * scale * 3 * bytesPerPixel)
	total := ((inFrame+outFrame)*framesInFlight + modelBytes) * overheadFactor

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to read system memory: %w", err)
	}

	est := &MemoryEstimate{
		EstimatedGB: total / (1 << 30),
		AvailableGB: float64(vm.Available) / (1 << 30),
	}
	est.RecommendedSafe = est.EstimatedGB <= est.AvailableGB*safetyMargin
	return est, nil
}

// DiskSpace returns the free space in GB on the volume holding path.
func DiskSpace(path string) (float64, error) {
	usage, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return 0, fmt.Errorf("failed to read disk usage: %w", err)
	}
	return float64(usage.Free) / (1 << 30), nil
}

func resolveTool(report *Report, role, name string) string {
	if name == "" {
		report.Errors = append(report.Errors, fmt.Sprintf("no %s executable configured", role))
		return ""
	}
	path, err := FindExecutable(name)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s (%s): %v", role, name, err))
		return ""
	}
	return path
}

// estimateOutputGB guesses the encoded output size. Upscaled video grows
// with the pixel count, so the input size times the squared factor is a
// usable ceiling.
func estimateOutputGB(inputBytes int64, scale int) float64 {
	if inputBytes <= 0 || scale < 1 {
		return 0
	}
	return float64(inputBytes) * float64(scale*scale) / (1 << 30)
}
