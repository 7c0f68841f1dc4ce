// internal/session/session.go

// Package session runs one generator/encoder pipeline from validation to a
// terminal state: the generator synthesizes frames, a bridge moves them
// into the encoder under backpressure, and stderr/stdout taps turn the
// byte streams into progress and preview events.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"upscalepipe/internal/event"
	"upscalepipe/internal/preview"
	"upscalepipe/internal/progress"
	"upscalepipe/internal/validation"
)

// Session owns one processing run. Construct with New, launch with Start,
// consume Events until the channel closes, then read Err and Result. A
// session is not reusable.
type Session struct {
	ID string

	cfg    Config
	logger hclog.Logger

	emitter  *event.Emitter
	parser   *progress.Parser
	genDiag  *progress.DiagnosticBuffer
	encDiag  *progress.DiagnosticBuffer
	preview  *preview.Extractor
	bridge   *Bridge
	canceler *Canceler

	mu            sync.Mutex
	state         State
	canceling     bool
	stopRequested bool
	killed        bool
	generator     *Handle
	encoder       *Handle
	err           error
	result        *Result

	started    time.Time
	done       chan struct{}
	finishOnce sync.Once
}

// New builds a session from cfg. Nothing runs until Start.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		ID:     uuid.New().String(),
		cfg:    cfg,
		logger: cfg.Logger.Named("session"),
		state:  StateIdle,
		done:   make(chan struct{}),
	}
	s.emitter = event.NewEmitter(cfg.EventBuffer)
	s.genDiag = progress.NewDiagnosticBuffer(cfg.DiagnosticMax)
	s.encDiag = progress.NewDiagnosticBuffer(cfg.DiagnosticMax)
	s.parser = progress.NewParser(cfg.TotalFrames, s.emitter, s.encDiag, s.isCanceling)
	s.preview = preview.NewExtractor(s.emitter, cfg.FrameBufferMax,
		event.NewThrottle(cfg.PreviewInterval, cfg.Clock))
	s.bridge = NewBridge(cfg.Logger, s.isCanceling)
	s.canceler = newCanceler(cfg.Logger, cfg.Timing)
	return s
}

// Start validates the run and spawns both processes. Validation and spawn
// failures are returned directly and produce no events; after a nil return
// the outcome arrives through Events, Done and Err.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.state = StateValidating
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Info("validating run",
		"id", s.ID,
		"script", s.cfg.Generator.ScriptPath,
		"input", s.cfg.Encoder.OriginalPath,
		"output", s.cfg.Encoder.OutputPath,
	)
	if err := s.validate(); err != nil {
		s.logger.Error("validation failed", "error", err)
		s.finish(err, nil)
		return err
	}

	s.setState(StateRunning)
	gen, enc, err := s.launch()
	if err != nil {
		s.logger.Error("spawn failed", "error", err)
		s.finish(err, nil)
		return err
	}

	s.logger.Info("pipeline started",
		"id", s.ID,
		"generator_pid", gen.Pid(),
		"encoder_pid", enc.Pid(),
		"total_frames", s.cfg.TotalFrames,
	)
	go s.supervise(gen, enc)
	return nil
}

// Events returns the session's event stream. The channel closes after the
// terminal event, or without one when the run was stopped or rejected.
func (s *Session) Events() <-chan event.Event { return s.emitter.Events() }

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session finishes or ctx expires.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

// Err returns the terminal error: nil on success, ErrCanceled or ErrKilled
// on a requested stop, or the run failure.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the run summary, or nil before the terminal state.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel begins the graceful shutdown: the generator is told to leave and
// the encoder keeps its grace window to finalize the container, so partial
// output stays playable. Process handles are released before Cancel
// returns. Cancel on a session that is not running is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateCanceling
	s.canceling = true
	s.stopRequested = true
	gen, enc := s.generator, s.encoder
	s.generator, s.encoder = nil, nil
	s.mu.Unlock()

	s.logger.Info("cancel requested", "id", s.ID)
	s.emitter.Emit(event.Event{
		Type:         event.TypeProgress,
		CurrentFrame: s.parser.LastFrame(),
		TotalFrames:  s.cfg.TotalFrames,
		FPS:          s.parser.LastFPS(),
		Message:      "Stopping processing",
		IsStopping:   true,
	})
	s.canceler.Cancel(gen, enc, s.bridge, s.resetCanceling)
}

// Kill force-stops both processes with no grace. Partial output is
// forfeited; handles are released and the canceling flag is reset before
// Kill returns. Kill also preempts a graceful cancel in flight.
func (s *Session) Kill() {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateCanceling {
		s.mu.Unlock()
		return
	}
	s.state = StateCanceling
	s.canceling = true
	s.stopRequested = true
	s.killed = true
	gen, enc := s.generator, s.encoder
	s.generator, s.encoder = nil, nil
	s.mu.Unlock()

	s.logger.Warn("kill requested", "id", s.ID)
	s.canceler.Kill(gen, enc, s.resetCanceling)
}

// validate checks the run configuration and every named artifact, failing
// on the first problem with a message specific to it.
func (s *Session) validate() error {
	if err := s.cfg.Generator.Validate(); err != nil {
		return err
	}
	if err := s.cfg.Encoder.Validate(); err != nil {
		return err
	}
	if _, err := s.cfg.Factory.LookPath(s.cfg.Generator.Executable); err != nil {
		return fmt.Errorf("generator executable not found: %s", s.cfg.Generator.Executable)
	}
	if _, err := s.cfg.Factory.LookPath(s.cfg.Encoder.Executable); err != nil {
		return fmt.Errorf("encoder executable not found: %s", s.cfg.Encoder.Executable)
	}
	if err := validation.ValidateScriptPath(s.cfg.Generator.ScriptPath); err != nil {
		return err
	}
	if err := validation.ValidateInputPath(s.cfg.Encoder.OriginalPath); err != nil {
		return err
	}
	return validation.ValidateOutputPath(s.cfg.Encoder.OutputPath)
}

// launch starts both processes and wires the streams: generator stdout
// through the bridge into encoder stdin, generator stderr into its
// diagnostic buffer, encoder stderr through the progress parser, encoder
// stdout through the preview extractor.
func (s *Session) launch() (*Handle, *Handle, error) {
	gen, err := startProcess(s.cfg.Factory, "generator", s.cfg.Generator.Executable, s.cfg.Generator.Build())
	if err != nil {
		return nil, nil, err
	}
	enc, err := startProcess(s.cfg.Factory, "encoder", s.cfg.Encoder.Executable, s.cfg.Encoder.Build())
	if err != nil {
		// The run never gets off the ground; reap the generator.
		gen.BeginWait(nil)
		if kerr := gen.Kill(); kerr != nil {
			s.logger.Debug("generator kill after failed spawn", "error", kerr)
		}
		return nil, nil, err
	}

	s.mu.Lock()
	s.generator, s.encoder = gen, enc
	s.mu.Unlock()

	// The generator only writes; holding its stdin open would just leak a
	// pipe.
	if err := gen.CloseStdin(); err != nil {
		s.logger.Debug("generator stdin close failed", "error", err)
	}

	// Each process is reaped only after its readers have drained the
	// final bytes, so late diagnostics are never lost.
	var genReaders, encReaders sync.WaitGroup
	genReaders.Add(2)
	encReaders.Add(2)

	go func() {
		defer genReaders.Done()
		pumpStream(gen.Stderr(), s.genDiag)
	}()
	go func() {
		defer encReaders.Done()
		pumpStream(enc.Stderr(), s.parser)
	}()
	go func() {
		defer encReaders.Done()
		pumpStream(enc.Stdout(), s.preview)
	}()

	s.bridge.Connect(gen.Stdout(), encoderStdin{enc})
	go func() {
		defer genReaders.Done()
		<-s.bridge.Done()
	}()

	gen.BeginWait(&genReaders)
	enc.BeginWait(&encReaders)
	return gen, enc, nil
}

// supervise waits for both exits and resolves the terminal state. The
// generator's verdict comes first when it leaves first: it saw the input
// problem before the encoder could mistranslate it into pipe noise.
func (s *Session) supervise(gen, enc *Handle) {
	genFirst := false
	select {
	case <-gen.Done():
		genFirst = true
	default:
		select {
		case <-gen.Done():
			genFirst = true
		case <-enc.Done():
		}
	}

	genKilled := false
	if genFirst {
		code := gen.ExitCode()
		s.logger.Debug("generator exited", "exit_code", code)
		if s.isFailure(code) {
			s.logger.Warn("generator failed, stopping encoder", "exit_code", code)
			if err := enc.Kill(); err != nil {
				s.logger.Debug("encoder kill failed", "error", err)
			}
			<-enc.Done()
			s.fail(progress.ExtractError(s.genDiag.String()))
			return
		}
		<-enc.Done()
	} else {
		// The encoder left first; without a consumer the generator has
		// nothing left to do.
		if !gen.Exited() {
			genKilled = true
			s.logger.Warn("encoder exited before generator, stopping generator")
			if err := gen.Kill(); err != nil {
				s.logger.Debug("generator kill failed", "error", err)
			}
		}
		<-gen.Done()
	}

	// The generator's own failure outranks the encoder's exit, even when
	// the encoder finished cleanly on the truncated stream. A generator we
	// killed ourselves carries no verdict, but a kill always reads as
	// signal death, so a positive code is the process's own.
	if s.isFailure(gen.ExitCode()) && (!genKilled || gen.ExitCode() > 0) {
		s.logger.Warn("generator failed", "exit_code", gen.ExitCode())
		s.fail(progress.ExtractError(s.genDiag.String()))
		return
	}

	code := enc.ExitCode()
	s.logger.Debug("encoder exited", "exit_code", code)
	switch {
	case s.isFailure(code):
		s.fail(progress.ExtractError(s.encDiag.String()))
	case s.stopWasRequested():
		s.stopped()
	default:
		s.complete()
	}
}

// isFailure interprets an exit code. Once a stop was requested, any exit,
// including signal death reported as a negative code, is the expected
// outcome rather than a failure.
func (s *Session) isFailure(code int) bool {
	return code != 0 && !s.stopWasRequested()
}

func (s *Session) complete() {
	s.setState(StateCompleting)
	frame := s.parser.LastFrame()
	if s.cfg.TotalFrames > 0 {
		frame = s.cfg.TotalFrames
	}
	s.logger.Info("run complete", "id", s.ID, "output", s.cfg.Encoder.OutputPath)
	s.finish(nil, &event.Event{
		Type:         event.TypeComplete,
		CurrentFrame: frame,
		TotalFrames:  s.cfg.TotalFrames,
		FPS:          s.parser.LastFPS(),
		Percentage:   100,
		Message:      "Processing complete",
	})
}

func (s *Session) fail(message string) {
	s.setState(StateErroring)
	s.logger.Error("run failed", "id", s.ID, "error", message)
	s.finish(errors.New(message), &event.Event{
		Type:         event.TypeError,
		CurrentFrame: s.parser.LastFrame(),
		TotalFrames:  s.cfg.TotalFrames,
		FPS:          s.parser.LastFPS(),
		Message:      message,
	})
}

func (s *Session) stopped() {
	outcome := ErrCanceled
	if s.wasKilled() {
		outcome = ErrKilled
	}
	s.logger.Info("run stopped", "id", s.ID, "outcome", outcome.Error())
	s.finish(outcome, nil)
}

// finish records the terminal outcome exactly once, releases the handles,
// delivers the terminal event if there is one, closes the event stream and
// unblocks Done. The outcome is recorded before the stream closes, so a
// consumer that drained Events can read Err and Result right away.
func (s *Session) finish(err error, terminal *event.Event) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDone
		s.err = err
		s.generator, s.encoder = nil, nil
		res := &Result{
			InputPath:     s.cfg.Encoder.OriginalPath,
			OutputPath:    s.cfg.Encoder.OutputPath,
			Elapsed:       time.Since(s.started),
			PreviewFrames: s.preview.Seen(),
			Success:       err == nil,
			Canceled:      errors.Is(err, ErrCanceled) || errors.Is(err, ErrKilled),
		}
		if err != nil {
			res.ErrorMessage = err.Error()
		}
		s.result = res
		s.mu.Unlock()

		if terminal != nil {
			s.emitter.EmitTerminal(*terminal)
		} else {
			s.emitter.Close()
		}
		close(s.done)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) isCanceling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceling
}

func (s *Session) stopWasRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *Session) wasKilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

func (s *Session) resetCanceling() {
	s.mu.Lock()
	s.canceling = false
	s.mu.Unlock()
}

// encoderStdin routes the bridge's writes to the encoder and its close
// through the handle's once-guarded close, so the bridge and the canceler
// cannot double-close the pipe.
type encoderStdin struct{ h *Handle }

func (w encoderStdin) Write(p []byte) (int, error) { return w.h.Stdin().Write(p) }
func (w encoderStdin) Close() error                { return w.h.CloseStdin() }

// pumpStream drains r into w in chunks until the stream ends. The
// consumers here never fail a write.
func pumpStream(r io.Reader, w io.Writer) {
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
