package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// outputBufferSize is the read size for streamed output.
	outputBufferSize = 4096

	// maxCapturedOutput bounds the output kept per stream by Run.
	maxCapturedOutput = 1 << 20

	defaultGracefulTimeout = 5 * time.Second
)

// Command describes one subprocess invocation.
type Command struct {
	// Name identifies the command in logs.
	Name string

	Binary string
	Args   []string

	// Env entries (key=value) are added to the parent environment.
	Env []string

	// WorkDir defaults to the parent's working directory.
	WorkDir string

	// Timeout bounds Run. Zero means no limit beyond the context.
	Timeout time.Duration
}

// Result is the outcome of Run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ErrExit is wrapped by Run when the command exits with a non-zero status.
var ErrExit = errors.New("process: non-zero exit")

// Runner starts subprocesses. The zero value is not usable; call NewRunner.
type Runner struct {
	logger          Logger
	gracefulTimeout time.Duration
}

// NewRunner creates a runner with a no-op logger.
func NewRunner() *Runner {
	return &Runner{logger: noopLogger{}, gracefulTimeout: defaultGracefulTimeout}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

func (r *Runner) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec // Commands come from the operator's toolbar file
	// Own process group so a stop reaches every child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if c.Env != nil {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}
	return cmd
}

// Run executes c and waits for it. A non-zero exit returns the Result
// together with an error wrapping ErrExit.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	stdout := &limitedBuffer{limit: maxCapturedOutput}
	stderr := &limitedBuffer{limit: maxCapturedOutput}
	cmd := r.command(ctx, c)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Background children may keep the pipes open after the shell exits.
	cmd.WaitDelay = time.Second

	r.logger.Debug("running command", "name", c.Name, "binary", c.Binary, "args", c.Args)

	start := time.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("running %s: %w", c.Name, ctx.Err())
	case errors.As(err, &exitErr):
		return res, fmt.Errorf("%w: %s exited with status %d", ErrExit, c.Name, res.ExitCode)
	default:
		return res, fmt.Errorf("running %s: %w", c.Name, err)
	}
}

// Start launches c without waiting. The process survives until it exits,
// ctx is cancelled or the Handle is stopped.
func (r *Runner) Start(ctx context.Context, c Command) (*Handle, error) {
	cmd := r.command(ctx, c)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.Name, err)
	}

	h := &Handle{
		name:            c.Name,
		cmd:             cmd,
		logger:          r.logger,
		gracefulTimeout: r.gracefulTimeout,
		done:            make(chan struct{}),
	}

	var streams sync.WaitGroup
	streams.Add(2)
	go func() { defer streams.Done(); h.captureOutput("stdout", stdout) }()
	go func() { defer streams.Done(); h.captureOutput("stderr", stderr) }()

	go func() {
		// Pipes must be drained before Wait closes them.
		streams.Wait()
		h.err = cmd.Wait()
		r.logger.Info("process exited", "name", c.Name, "pid", cmd.Process.Pid, "exit_code", cmd.ProcessState.ExitCode())
		close(h.done)
	}()

	r.logger.Info("process started", "name", c.Name, "pid", cmd.Process.Pid)
	return h, nil
}

// Handle tracks a process launched by Start.
type Handle struct {
	name            string
	cmd             *exec.Cmd
	logger          Logger
	gracefulTimeout time.Duration

	done chan struct{}
	err  error
}

// PID returns the process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process exits and returns its exit error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Stop sends SIGTERM to the process group, then SIGKILL after the graceful
// timeout.
func (h *Handle) Stop() error {
	select {
	case <-h.done:
		return nil
	default:
	}

	pid := h.PID()
	h.logger.Info("stopping process", "name", h.name, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		h.logger.Warn("failed to send SIGTERM to process group", "name", h.name, "error", err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(h.gracefulTimeout):
		h.logger.Warn("graceful shutdown timeout, sending SIGKILL", "name", h.name, "timeout", h.gracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", h.name, err)
	}
	<-h.done
	return nil
}

// captureOutput logs everything read from r.
func (h *Handle) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.logger.Debug("process output", "name", h.name, "stream", stream, "output", string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
