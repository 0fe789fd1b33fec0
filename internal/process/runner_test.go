package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	b.WriteString(msg)
	for _, a := range args {
		b.WriteString(" ")
		b.WriteString(fmt.Sprint(a))
	}
	l.entries = append(l.entries, b.String())
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record(msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record(msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record(msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record(msg, args...) }

func (l *recordingLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.Contains(e, s) {
			return true
		}
	}
	return false
}

func shell(name, script string) Command {
	return Command{Name: name, Binary: "/bin/sh", Args: []string{"-c", script}}
}

func TestRun_CapturesOutput(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), shell("echo", "echo out; echo err 1>&2"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), shell("fail", "exit 3"))
	if !errors.Is(err, ErrExit) {
		t.Fatalf("Run() error = %v, want ErrExit", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), Command{Name: "missing", Binary: "/nonexistent/lucid-binary"})
	if err == nil {
		t.Fatal("Run() expected error for missing binary")
	}
	if errors.Is(err, ErrExit) {
		t.Error("missing binary should not be reported as a non-zero exit")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestRun_Timeout(t *testing.T) {
	c := shell("sleep", "sleep 10")
	c.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := NewRunner().Run(context.Background(), c)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the command promptly")
	}
}

func TestRun_EnvAndWorkDir(t *testing.T) {
	dir := t.TempDir()
	c := shell("env", `echo "$LUCID_TEST_VAR"; pwd`)
	c.Env = []string{"LUCID_TEST_VAR=hello"}
	c.WorkDir = dir

	res, err := NewRunner().Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 || lines[0] != "hello" {
		t.Fatalf("Stdout = %q", res.Stdout)
	}
	if lines[1] != dir {
		t.Errorf("pwd = %q, want %q", lines[1], dir)
	}
}

func TestStart_LogsOutputAndExits(t *testing.T) {
	logger := &recordingLogger{}
	r := NewRunner()
	r.SetLogger(logger)

	h, err := r.Start(context.Background(), shell("display", "echo launched"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if h.PID() <= 0 {
		t.Errorf("PID() = %d", h.PID())
	}
	if err := h.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if !logger.contains("launched") {
		t.Error("process output was not logged")
	}
	if err := h.Stop(); err != nil {
		t.Errorf("Stop() after exit error = %v", err)
	}
}

func TestStart_Stop(t *testing.T) {
	r := NewRunner()
	r.gracefulTimeout = 2 * time.Second

	h, err := r.Start(context.Background(), shell("long", "sleep 30"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Stop()")
	}
}

func TestStart_MissingBinary(t *testing.T) {
	if _, err := NewRunner().Start(context.Background(), Command{Name: "missing", Binary: "/nonexistent/lucid-binary"}); err == nil {
		t.Error("Start() expected error for missing binary")
	}
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{limit: 4}
	n, err := b.Write([]byte("abc"))
	if n != 3 || err != nil {
		t.Fatalf("Write() = (%d, %v)", n, err)
	}
	n, _ = b.Write([]byte("defg"))
	if n != 4 {
		t.Errorf("Write() n = %d, want 4 (short writes break io.Copy)", n)
	}
	if b.String() != "abcd" {
		t.Errorf("String() = %q, want abcd", b.String())
	}
}
