package supervise

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// ErrSessionClosed is returned by interactions against a session whose
// process has exited or been terminated.
var ErrSessionClosed = errors.New("session closed")

// Action is a named, pre-scripted interaction against a live session.
// Execute may send input and wait for expected output; it is never
// invoked concurrently with itself or with the interact loop's
// pass-through.
type Action interface {
	Name() string
	Execute(s *Session) error
}

// EventLogger receives session lifecycle events. Implemented by db.DB;
// nil disables logging.
type EventLogger interface {
	LogSessionEvent(sessionID, command, event, detail string) error
}

// StartOpts configures a supervised session.
type StartOpts struct {
	Dir    string      // working directory; empty = inherit
	Mirror io.Writer   // real-time output mirror; nil = discard
	Events EventLogger // nil = no logging
}

// Session owns exactly one spawned process, its I/O streams, the
// registered actions, and the live transcript. It is created by Start
// and closed exactly once, when the process exits or Terminate is
// called.
type Session struct {
	id         string
	command    string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	transcript *Transcript
	actions    []Action
	events     EventLogger

	mutex   sync.Mutex
	cursor  int // read position for WaitForOutput
	closed  bool
	exitErr error

	done chan struct{}
}

// Start spawns the command in its own process group and begins
// mirroring its output into the transcript (and opts.Mirror). The
// returned session is live until the process exits.
func Start(argv []string, actions []Action, opts StartOpts) (*Session, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", argv[0], err)
	}

	s := &Session{
		id:         uuid.NewString(),
		command:    strings.Join(argv, " "),
		cmd:        cmd,
		stdin:      stdin,
		transcript: NewTranscript(),
		actions:    actions,
		events:     opts.Events,
		done:       make(chan struct{}),
	}
	s.logEvent("started", "")

	mirror := opts.Mirror
	if mirror == nil {
		mirror = io.Discard
	}
	sink := io.MultiWriter(s.transcript, mirror)

	var drained sync.WaitGroup
	drained.Add(2)
	go func() {
		defer drained.Done()
		_, _ = io.Copy(sink, stdout)
	}()
	go func() {
		defer drained.Done()
		_, _ = io.Copy(sink, stderr)
	}()

	go func() {
		drained.Wait()
		err := cmd.Wait()
		s.mutex.Lock()
		s.closed = true
		s.exitErr = err
		s.mutex.Unlock()
		s.transcript.Close()
		close(s.done)
		s.logEvent("exited", "")
	}()

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Actions returns the registered interactive actions.
func (s *Session) Actions() []Action { return s.actions }

// Transcript returns the session's transcript.
func (s *Session) Transcript() *Transcript { return s.transcript }

// Closed reports whether the underlying process has exited.
func (s *Session) Closed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

// Done returns a channel closed when the process exits.
func (s *Session) Done() <-chan struct{} { return s.done }

// SendInput writes text to the process's input stream exactly as
// given; no trailing newline is added.
func (s *Session) SendInput(text string) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if _, err := io.WriteString(s.stdin, text); err != nil {
		// The process can exit between the closed check and the write;
		// a broken pipe means the session is gone, not an I/O fault.
		if s.Closed() || errors.Is(err, syscall.EPIPE) {
			return ErrSessionClosed
		}
		return fmt.Errorf("send input: %w", err)
	}
	return nil
}

// WaitForOutput blocks until pattern appears in the transcript from
// the session's current read position onward, or timeout elapses, or
// the process exits. Timeout and process exit report false without an
// error; only a call against an already-closed session fails with
// ErrSessionClosed.
func (s *Session) WaitForOutput(pattern string, timeout time.Duration) (bool, error) {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return false, ErrSessionClosed
	}
	from := s.cursor
	s.mutex.Unlock()

	found, next := s.transcript.WaitFor([]byte(pattern), from, timeout)
	if found {
		s.mutex.Lock()
		if next > s.cursor {
			s.cursor = next
		}
		s.mutex.Unlock()
	}
	return found, nil
}

// Signal delivers sig to the process group.
func (s *Session) Signal(sig syscall.Signal) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return unix.Kill(-s.cmd.Process.Pid, sig)
}

// CloseInput closes the process's stdin, signalling end of input.
func (s *Session) CloseInput() error {
	return s.stdin.Close()
}

// Wait blocks until the process exits and returns its exit error.
func (s *Session) Wait() error {
	<-s.done
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.exitErr
}

// Terminate asks the process group to exit, then kills it if still
// alive after a short grace period, and waits for the session to
// close.
func (s *Session) Terminate() error {
	if s.Closed() {
		return nil
	}
	s.logEvent("terminated", "")
	pgid := -s.cmd.Process.Pid
	_ = unix.Kill(pgid, unix.SIGTERM)
	select {
	case <-s.done:
		return nil
	case <-time.After(2 * time.Second):
	}
	_ = unix.Kill(pgid, unix.SIGKILL)
	<-s.done
	return nil
}

func (s *Session) logEvent(event, detail string) {
	if s.events != nil {
		_ = s.events.LogSessionEvent(s.id, s.command, event, detail)
	}
}
