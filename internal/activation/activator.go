// Package activation executes toolbar controls.
//
// Shell controls run each command through the configured shell, one after
// another, stopping at the first failure. Display controls start the display
// launcher once per target and leave it running. Inert controls do nothing
// and report ErrInert.
package activation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lucid-core/internal/process"
	"github.com/nerrad567/lucid-core/internal/toolbar"
)

var (
	// ErrInert is returned when activating a control that has no action.
	ErrInert = errors.New("activation: control has no action")

	// ErrControlNotFound is returned when a request names an unknown control.
	ErrControlNotFound = errors.New("activation: control not found")

	// ErrInvalidRequest is returned for malformed activation requests.
	ErrInvalidRequest = errors.New("activation: invalid request")

	// ErrDraining is returned for requests arriving after Service.Drain.
	ErrDraining = errors.New("activation: service is shutting down")
)

// Config controls how actions are executed.
type Config struct {
	// Shell runs each shell command as `Shell -c <command>`.
	Shell   string
	WorkDir string
	// Timeout bounds each shell command. Zero means no limit.
	Timeout time.Duration

	// DisplayBinary is started as `DisplayBinary DisplayArgs... [-m <macros>] <file>`.
	DisplayBinary string
	DisplayArgs   []string
}

// Logger defines the logging interface for the activator.
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

// CommandOutput is the captured output of one shell command.
type CommandOutput struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Outcome describes what an activation did.
type Outcome struct {
	Label string       `json:"label"`
	Kind  toolbar.Kind `json:"kind"`
	// Outputs is filled for shell controls with redirected output.
	Outputs []CommandOutput `json:"outputs,omitempty"`
	// PIDs of display launchers started.
	PIDs     []int         `json:"pids,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Activator runs controls. It is safe for concurrent use.
type Activator struct {
	cfg    Config
	runner *process.Runner
	logger Logger

	mu       sync.Mutex
	launched []*process.Handle
}

// New creates an activator that starts processes through runner.
func New(cfg Config, runner *process.Runner) *Activator {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	return &Activator{cfg: cfg, runner: runner, logger: noopLogger{}}
}

// SetLogger sets the logger for the activator.
func (a *Activator) SetLogger(logger Logger) {
	a.logger = logger
}

// Activate executes c.
func (a *Activator) Activate(ctx context.Context, c toolbar.Control) (Outcome, error) {
	start := time.Now()
	out := Outcome{Label: c.Label, Kind: c.Kind}

	var err error
	switch {
	case c.Kind == toolbar.KindShell && c.Shell != nil:
		out.Outputs, err = a.runShell(ctx, c.Label, c.Shell)
	case c.Kind == toolbar.KindDisplay && c.Display != nil:
		out.PIDs, err = a.openDisplays(ctx, c.Label, c.Display)
	default:
		err = fmt.Errorf("%w: %q", ErrInert, c.Label)
	}

	out.Duration = time.Since(start)
	return out, err
}

func (a *Activator) runShell(ctx context.Context, label string, action *toolbar.ShellAction) ([]CommandOutput, error) {
	var outputs []CommandOutput
	for _, command := range action.Commands {
		res, err := a.runner.Run(ctx, process.Command{
			Name:    label,
			Binary:  a.cfg.Shell,
			Args:    []string{"-c", command},
			WorkDir: a.cfg.WorkDir,
			Timeout: a.cfg.Timeout,
		})

		if action.RedirectOutput {
			outputs = append(outputs, CommandOutput{
				Command:  command,
				ExitCode: res.ExitCode,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
			})
			a.logger.Info("shell command output", "label", label, "command", command,
				"exit_code", res.ExitCode, "stdout", res.Stdout, "stderr", res.Stderr)
		}

		if err != nil {
			return outputs, fmt.Errorf("shell command %q: %w", command, err)
		}
	}
	return outputs, nil
}

func (a *Activator) openDisplays(ctx context.Context, label string, action *toolbar.DisplayAction) ([]int, error) {
	// Displays outlive the request that opened them.
	ctx = context.WithoutCancel(ctx)

	var pids []int
	for _, target := range action.Targets {
		args, err := a.displayArgs(target)
		if err != nil {
			return pids, err
		}

		h, err := a.runner.Start(ctx, process.Command{
			Name:    label,
			Binary:  a.cfg.DisplayBinary,
			Args:    args,
			WorkDir: a.cfg.WorkDir,
		})
		if err != nil {
			return pids, fmt.Errorf("opening display %q: %w", target.Filename, err)
		}

		a.mu.Lock()
		a.launched = append(a.launched, h)
		a.mu.Unlock()

		pids = append(pids, h.PID())
		a.logger.Info("display opened", "label", label, "file", target.Filename, "pid", h.PID())
	}
	return pids, nil
}

func (a *Activator) displayArgs(target toolbar.DisplayTarget) ([]string, error) {
	args := append([]string(nil), a.cfg.DisplayArgs...)
	if len(target.Macros) > 0 {
		macros, err := json.Marshal(target.Macros)
		if err != nil {
			return nil, fmt.Errorf("encoding macros for %q: %w", target.Filename, err)
		}
		args = append(args, "-m", string(macros))
	}
	return append(args, target.Filename), nil
}

// Close stops every display launcher still running.
func (a *Activator) Close() error {
	a.mu.Lock()
	launched := a.launched
	a.launched = nil
	a.mu.Unlock()

	var errs []error
	for _, h := range launched {
		if err := h.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
