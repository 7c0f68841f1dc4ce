// internal/session/config.go
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"upscalepipe/internal/command"
	"upscalepipe/internal/event"
	"upscalepipe/internal/preview"
	"upscalepipe/internal/progress"
)

// Terminal outcomes for stopped runs.
var (
	// ErrCanceled reports a run stopped by Cancel.
	ErrCanceled = errors.New("session canceled")
	// ErrKilled reports a run stopped by Kill.
	ErrKilled = errors.New("session killed")
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateRunning
	StateCompleting
	StateErroring
	StateCanceling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateCompleting:
		return "completing"
	case StateErroring:
		return "erroring"
	case StateCanceling:
		return "canceling"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config describes one processing run.
type Config struct {
	Generator command.GeneratorSpec
	Encoder   command.EncoderSpec

	// TotalFrames is the progress denominator. Zero disables percentages.
	TotalFrames int

	// Timing holds the cancellation grace windows.
	Timing Timing

	// PreviewInterval is the minimum spacing of preview events. Zero
	// selects the default; negative disables throttling.
	PreviewInterval time.Duration
	// FrameBufferMax bounds the preview reassembly accumulator.
	FrameBufferMax int
	// DiagnosticMax bounds each process's captured stderr.
	DiagnosticMax int
	// EventBuffer is the event channel capacity.
	EventBuffer int

	Logger  hclog.Logger
	Factory CommandFactory
	// Clock overrides the preview throttle's time source in tests.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.Factory == nil {
		c.Factory = ExecFactory{}
	}
	switch {
	case c.PreviewInterval == 0:
		c.PreviewInterval = preview.DefaultMinInterval
	case c.PreviewInterval < 0:
		c.PreviewInterval = 0
	}
	if c.FrameBufferMax <= 0 {
		c.FrameBufferMax = preview.DefaultMaxBuffer
	}
	if c.DiagnosticMax <= 0 {
		c.DiagnosticMax = progress.DefaultDiagnosticLimit
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = event.DefaultBuffer
	}
	c.Timing = c.Timing.withDefaults()
	return c
}

// Result summarizes a finished run.
type Result struct {
	InputPath     string
	OutputPath    string
	Elapsed       time.Duration
	PreviewFrames int
	Success       bool
	Canceled      bool
	ErrorMessage  string
}
