// internal/session/cancel.go
package session

import (
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Timing holds the cancellation grace windows. Zero values select the
// defaults.
type Timing struct {
	// GeneratorTermGrace is how long the generator gets between the
	// termination signal and the kill signal.
	GeneratorTermGrace time.Duration
	// EncoderFlushGrace is how long the encoder gets to drain its input
	// and finalize the container after its stdin closes.
	EncoderFlushGrace time.Duration
	// EncoderTermGrace is how long the encoder gets between the
	// termination signal and the kill signal.
	EncoderTermGrace time.Duration
	// ResetMargin is the slack added to the canceling flag's backstop.
	ResetMargin time.Duration
}

const (
	defaultGeneratorTermGrace = 3 * time.Second
	defaultEncoderFlushGrace  = 10 * time.Second
	defaultEncoderTermGrace   = 3 * time.Second
	defaultResetMargin        = time.Second
)

func (t Timing) withDefaults() Timing {
	if t.GeneratorTermGrace <= 0 {
		t.GeneratorTermGrace = defaultGeneratorTermGrace
	}
	if t.EncoderFlushGrace <= 0 {
		t.EncoderFlushGrace = defaultEncoderFlushGrace
	}
	if t.EncoderTermGrace <= 0 {
		t.EncoderTermGrace = defaultEncoderTermGrace
	}
	if t.ResetMargin <= 0 {
		t.ResetMargin = defaultResetMargin
	}
	return t
}

// total is the longest possible graceful shutdown.
func (t Timing) total() time.Duration {
	return t.GeneratorTermGrace + t.EncoderFlushGrace + t.EncoderTermGrace + t.ResetMargin
}

// deadline is a single cancellable timer. Each pending escalation owns
// one, so clearing on early exit is one Stop call instead of bookkeeping
// across a chain of callbacks.
type deadline struct {
	mu    sync.Mutex
	timer *time.Timer
}

// after arms the deadline; fn fires once unless stopped first. Re-arming
// replaces the previous timer.
func (d *deadline) after(dur time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(dur, fn)
}

// stop disarms without firing. Safe on an idle deadline.
func (d *deadline) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

type cancelState int

const (
	cancelIdle cancelState = iota
	cancelCanceling
	cancelCanceled
	cancelKilled
)

// Canceler coordinates the ordered shutdown of the generator and encoder
// pair: sever the pipe first, stop the producer, let the consumer drain,
// escalate on deadline. One instance belongs to one session.
type Canceler struct {
	logger hclog.Logger
	timing Timing

	mu    sync.Mutex
	state cancelState
	gen   *Handle
	enc   *Handle

	genTerm  deadline // generator termination to kill escalation
	encFlush deadline // encoder stdin close to termination
	encTerm  deadline // encoder termination to kill escalation
	reset    deadline // canceling flag backstop
}

func newCanceler(logger hclog.Logger, timing Timing) *Canceler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Canceler{
		logger: logger.Named("cancel"),
		timing: timing.withDefaults(),
	}
}

// Cancel runs the graceful path: terminate the generator with an
// escalation deadline, close the encoder's input with a flush deadline and
// its own escalation, and reset the canceling flag once both processes are
// gone, with a timer covering the whole grace period as a backstop.
// onReset runs exactly once. Only the first Cancel has any effect.
func (c *Canceler) Cancel(gen, enc *Handle, bridge *Bridge, onReset func()) {
	c.mu.Lock()
	if c.state != cancelIdle {
		c.mu.Unlock()
		return
	}
	c.state = cancelCanceling
	c.gen, c.enc = gen, enc
	c.mu.Unlock()

	if bridge != nil {
		bridge.Disconnect()
	}

	if gen != nil {
		c.logger.Debug("terminating generator", "pid", gen.Pid())
		if err := gen.Signal(syscall.SIGTERM); err != nil {
			c.logger.Debug("generator termination signal failed", "error", err)
		}
		c.genTerm.after(c.timing.GeneratorTermGrace, func() {
			if gen.Exited() {
				return
			}
			c.logger.Warn("generator ignored termination, killing", "pid", gen.Pid())
			if err := gen.Kill(); err != nil {
				c.logger.Debug("generator kill failed", "error", err)
			}
		})
		go func() {
			<-gen.Done()
			c.genTerm.stop()
		}()
	}

	if enc != nil {
		c.logger.Debug("closing encoder stdin for drain", "pid", enc.Pid())
		if err := enc.CloseStdin(); err != nil {
			c.logger.Debug("encoder stdin close failed", "error", err)
		}
		c.encFlush.after(c.timing.EncoderFlushGrace, func() {
			if enc.Exited() {
				return
			}
			c.logger.Warn("encoder still draining after grace period, terminating", "pid", enc.Pid())
			if err := enc.Signal(syscall.SIGTERM); err != nil {
				c.logger.Debug("encoder termination signal failed", "error", err)
			}
			c.encTerm.after(c.timing.EncoderTermGrace, func() {
				if enc.Exited() {
					return
				}
				c.logger.Warn("encoder ignored termination, killing", "pid", enc.Pid())
				if err := enc.Kill(); err != nil {
					c.logger.Debug("encoder kill failed", "error", err)
				}
			})
		})
		go func() {
			<-enc.Done()
			c.encFlush.stop()
			c.encTerm.stop()
		}()
	}

	c.reset.after(c.timing.total(), func() {
		c.finish(cancelCanceled, onReset)
	})
	go c.finishWhenSettled(gen, enc, onReset)
}

// Kill force-kills both processes and resets synchronously. No deadline is
// armed on this path; it also preempts a graceful cancel already underway.
func (c *Canceler) Kill(gen, enc *Handle, onReset func()) {
	c.mu.Lock()
	if c.state == cancelKilled {
		c.mu.Unlock()
		return
	}
	c.state = cancelKilled
	// A cancel in flight already owns the handles.
	if gen == nil {
		gen = c.gen
	}
	if enc == nil {
		enc = c.enc
	}
	c.mu.Unlock()

	for _, h := range []*Handle{gen, enc} {
		if h == nil {
			continue
		}
		c.logger.Debug("killing process", "role", h.Role(), "pid", h.Pid())
		if err := h.Kill(); err != nil {
			c.logger.Debug("kill failed", "role", h.Role(), "error", err)
		}
	}

	c.stopDeadlines()
	if onReset != nil {
		onReset()
	}
}

// Killed reports whether the hard path ran.
func (c *Canceler) Killed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == cancelKilled
}

// finishWhenSettled releases the canceling flag as soon as both processes
// are gone. The backstop timer covers a handle that never reports.
func (c *Canceler) finishWhenSettled(gen, enc *Handle, onReset func()) {
	if gen != nil {
		<-gen.Done()
	}
	if enc != nil {
		<-enc.Done()
	}
	c.finish(cancelCanceled, onReset)
}

// finish moves to a terminal state exactly once and clears every pending
// deadline.
func (c *Canceler) finish(state cancelState, onReset func()) {
	c.mu.Lock()
	if c.state == cancelCanceled || c.state == cancelKilled {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.stopDeadlines()
	if onReset != nil {
		onReset()
	}
}

func (c *Canceler) stopDeadlines() {
	c.genTerm.stop()
	c.encFlush.stop()
	c.encTerm.stop()
	c.reset.stop()
}
