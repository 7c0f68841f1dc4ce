// internal/session/proc.go
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Command abstracts the slice of exec.Cmd the session needs, so tests can
// substitute scripted processes. All three pipes must be requested before
// Start.
type Command interface {
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	StderrPipe() (io.ReadCloser, error)
	Start() error
	// Wait blocks until the process exits and returns its exit code. A
	// negative code means the process died on a signal. The error is only
	// set for wait failures, not for non-zero exits.
	Wait() (int, error)
	Pid() int
	Signal(sig os.Signal) error
}

// CommandFactory builds and resolves the pipeline's external commands.
type CommandFactory interface {
	LookPath(name string) (string, error)
	New(name string, args ...string) Command
}

// ExecFactory is the production CommandFactory backed by os/exec.
type ExecFactory struct{}

var _ CommandFactory = ExecFactory{}

func (ExecFactory) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecFactory) New(name string, args ...string) Command {
	return &execCommand{cmd: exec.Command(name, args...)}
}

type execCommand struct {
	cmd *exec.Cmd
}

func (c *execCommand) StdinPipe() (io.WriteCloser, error)  { return c.cmd.StdinPipe() }
func (c *execCommand) StdoutPipe() (io.ReadCloser, error)  { return c.cmd.StdoutPipe() }
func (c *execCommand) StderrPipe() (io.ReadCloser, error)  { return c.cmd.StderrPipe() }
func (c *execCommand) Start() error                        { return c.cmd.Start() }

func (c *execCommand) Wait() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (c *execCommand) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *execCommand) Signal(sig os.Signal) error {
	if c.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if sig == os.Kill {
		return c.cmd.Process.Kill()
	}
	return c.cmd.Process.Signal(sig)
}

// Handle is one live pipeline process with its standard streams and its
// observed exit status. A handle belongs to exactly one session.
type Handle struct {
	role   string
	cmd    Command
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	stdinOnce sync.Once
	stdinErr  error

	mu       sync.Mutex
	exited   bool
	exitCode int
	waitErr  error

	done chan struct{}
}

// startProcess launches name with args under role and wires all three
// standard streams. On any failure the command is not left running.
func startProcess(factory CommandFactory, role, name string, args []string) (*Handle, error) {
	cmd := factory.New(name, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdin pipe: %w", role, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout pipe: %w", role, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stderr pipe: %w", role, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", role, err)
	}

	return &Handle{
		role:     role,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		exitCode: -1,
		done:     make(chan struct{}),
	}, nil
}

// BeginWait starts exit observation. readers, when non-nil, is awaited
// before reaping so the final bytes of both streams are consumed before
// the runtime tears the pipes down.
func (h *Handle) BeginWait(readers *sync.WaitGroup) {
	go func() {
		if readers != nil {
			readers.Wait()
		}
		code, err := h.cmd.Wait()

		h.mu.Lock()
		h.exited = true
		h.exitCode = code
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
}

// Done is closed once the exit status has been recorded.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether the process has left.
func (h *Handle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// ExitCode returns the recorded exit status. Negative covers signal death
// and is only meaningful once Done is closed.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// WaitErr returns the wait failure, if any.
func (h *Handle) WaitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// Signal delivers sig to the process. Signaling an exited process is a
// no-op, never an error.
func (h *Handle) Signal(sig os.Signal) error {
	if h.Exited() {
		return nil
	}
	return h.cmd.Signal(sig)
}

// Kill delivers the uncatchable kill signal, as a no-op after exit.
func (h *Handle) Kill() error {
	return h.Signal(os.Kill)
}

// CloseStdin closes the write side of the process's standard input exactly
// once; later calls return the first result.
func (h *Handle) CloseStdin() error {
	h.stdinOnce.Do(func() {
		h.stdinErr = h.stdin.Close()
	})
	return h.stdinErr
}

// Stdin returns the write side of the process's standard input. Prefer
// CloseStdin for closing it.
func (h *Handle) Stdin() io.Writer { return h.stdin }

// Stdout returns the read side of the process's standard output.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Stderr returns the read side of the process's standard error.
func (h *Handle) Stderr() io.Reader { return h.stderr }

// Role returns the handle's pipeline role name.
func (h *Handle) Role() string { return h.role }

// Pid returns the operating system process id.
func (h *Handle) Pid() int { return h.cmd.Pid() }
