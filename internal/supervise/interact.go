package supervise

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Control bytes handled by the interact loop.
const (
	ctrlC = 0x03
	ctrlD = 0x04
	ctrlZ = 0x1a
)

// DefaultShortcut is Ctrl-A, the default action-menu trigger.
const DefaultShortcut byte = 0x01

// Interact runs the blocking foreground loop for the session: it
// forwards operator keystrokes to the process and mirrors process
// output (via the Start goroutines), until the process exits. When the
// shortcut byte is pressed, pass-through is suspended, the registered
// actions are presented by name, and the selected action's Execute
// runs to completion before pass-through resumes.
//
// Without a terminal on stdin (tests, redirected input), input is
// forwarded without raw mode and the shortcut is inactive.
func (s *Session) Interact(shortcut byte) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) || len(s.actions) == 0 || shortcut == 0 {
		go func() { _, _ = io.Copy(s.stdin, os.Stdin) }()
		return s.Wait()
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	input := make(chan byte, 64)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				input <- buf[0]
			}
			if err != nil {
				close(input)
				return
			}
		}
	}()

	for {
		select {
		case <-s.done:
			return s.Wait()
		case b, ok := <-input:
			if !ok {
				return s.Wait()
			}
			switch b {
			case shortcut:
				// Cooked mode for the menu so the operator gets echo
				// and line editing back.
				_ = term.Restore(fd, oldState)
				s.runActionMenu(input)
				if _, err := term.MakeRaw(fd); err != nil {
					return fmt.Errorf("re-enter raw mode: %w", err)
				}
			case ctrlC:
				_ = s.Signal(unix.SIGINT)
			case ctrlD:
				_ = s.CloseInput()
			case ctrlZ:
				_ = s.Signal(unix.SIGTSTP)
			default:
				if err := s.SendInput(string(b)); err != nil {
					if err == ErrSessionClosed {
						return s.Wait()
					}
					return err
				}
			}
		}
	}
}

// runActionMenu presents the registered actions and executes the
// selection. Invalid or empty input cancels.
func (s *Session) runActionMenu(input <-chan byte) {
	fmt.Println()
	fmt.Println("Available actions:")
	for i, action := range s.actions {
		fmt.Printf("%d. %s\n", i+1, action.Name())
	}
	fmt.Print("\nSelect an action (number, Enter to cancel): ")

	line, ok := readLine(input)
	if !ok || strings.TrimSpace(line) == "" {
		fmt.Println("\nAction cancelled.")
		return
	}
	index, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || index < 1 || index > len(s.actions) {
		fmt.Println("Invalid selection.")
		return
	}

	action := s.actions[index-1]
	s.logEvent("action", action.Name())
	if err := action.Execute(s); err != nil {
		fmt.Fprintf(os.Stderr, "action %q: %v\n", action.Name(), err)
	}
}

// readLine collects bytes from the interact input channel until a
// newline. Returns false if the channel closes first.
func readLine(input <-chan byte) (string, bool) {
	var sb strings.Builder
	for b := range input {
		if b == '\n' || b == '\r' {
			return sb.String(), true
		}
		sb.WriteByte(b)
	}
	return sb.String(), false
}
