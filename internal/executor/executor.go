package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Output holds everything captured from a single execution attempt.
// It is immutable once returned; upper layers copy what they need.
type Output struct {
	Stdout     string                 `json:"stdout"`
	Stderr     string                 `json:"stderr"`
	ExitCode   int                    `json:"exit_code"`
	TimedOut   bool                   `json:"timed_out"`
	Structured map[string]interface{} `json:"structured,omitempty"`
	Duration   time.Duration          `json:"duration"`
}

// Failed reports whether the attempt should count as a failure:
// non-zero exit or wall-clock timeout.
func (o *Output) Failed() bool {
	return o.TimedOut || o.ExitCode != 0
}

// killGrace is how long a timed-out process gets between SIGTERM and SIGKILL.
const killGrace = 2 * time.Second

// Executor runs one external command to completion under a wall-clock
// timeout. The child runs in its own process group so that shell
// pipelines and agent subprocesses are terminated together.
type Executor struct {
	// Grace overrides the SIGTERM→SIGKILL grace period (for testing).
	Grace time.Duration
}

// New returns an Executor with the default grace period.
func New() *Executor {
	return &Executor{Grace: killGrace}
}

// Run launches argv[0] with the remaining arguments, captures stdout and
// stderr as they arrive, and terminates the process group if it has not
// exited after timeout. A timeout is not an error: the returned Output
// has TimedOut set and carries whatever was captured up to that point.
// Context cancellation terminates the child the same way and returns
// the context's error.
func (e *Executor) Run(ctx context.Context, argv []string, timeout time.Duration) (*Output, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	return e.run(ctx, cmd, timeout)
}

// RunShell runs a shell command line via `sh -c` in dir, with the same
// timeout semantics as Run. An empty dir inherits the caller's cwd.
func (e *Executor) RunShell(ctx context.Context, dir string, command string, timeout time.Duration) (*Output, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	return e.run(ctx, cmd, timeout)
}

func (e *Executor) run(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (*Output, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", cmd.Path, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var timedOut bool
	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		e.terminate(cmd, done)
	case <-ctx.Done():
		e.terminate(cmd, done)
		return nil, ctx.Err()
	}

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}
	out.ExitCode = exitCode(cmd, waitErr, timedOut)
	return out, nil
}

// terminate asks the child's process group to exit, then kills it if it
// is still alive after the grace period. Blocks until Wait returns.
func (e *Executor) terminate(cmd *exec.Cmd, done chan error) {
	grace := e.Grace
	if grace <= 0 {
		grace = killGrace
	}
	pgid := -cmd.Process.Pid
	_ = unix.Kill(pgid, unix.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(grace):
	}
	_ = unix.Kill(pgid, unix.SIGKILL)
	<-done
}

// exitCode extracts the child's exit status. A timed-out or signalled
// process reports -1.
func exitCode(cmd *exec.Cmd, waitErr error, timedOut bool) int {
	if timedOut {
		return -1
	}
	if waitErr == nil {
		if cmd.ProcessState != nil {
			return cmd.ProcessState.ExitCode()
		}
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
