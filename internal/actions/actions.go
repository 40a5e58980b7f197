// Package actions loads scripted session interactions from YAML.
// Each file defines one named action: an ordered list of send and
// wait_for steps replayed against a live supervised session.
package actions

import (
	"fmt"
	"time"

	"github.com/olivaw/daneel/internal/supervise"
)

// DefaultWaitTimeout applies to wait_for steps with no timeout of
// their own.
const DefaultWaitTimeout = 30 * time.Second

// Step is one scripted interaction: either text sent verbatim to the
// process or a pattern waited for in its output. Exactly one of Send
// and WaitFor is set.
type Step struct {
	Send    *string
	WaitFor *string
	Timeout time.Duration // wait_for only
}

// ScriptedAction is a named sequence of steps. It implements
// supervise.Action.
type ScriptedAction struct {
	name  string
	steps []Step
}

// Name returns the action's name as shown in the interactive menu.
func (a *ScriptedAction) Name() string { return a.name }

// Steps returns the action's step sequence.
func (a *ScriptedAction) Steps() []Step { return a.steps }

// Execute replays the steps against the session in order. A wait_for
// step that times out fails the action; the session stays live.
func (a *ScriptedAction) Execute(s *supervise.Session) error {
	for i, step := range a.steps {
		switch {
		case step.Send != nil:
			if err := s.SendInput(*step.Send); err != nil {
				return fmt.Errorf("%s step %d: %w", a.name, i+1, err)
			}
		case step.WaitFor != nil:
			timeout := step.Timeout
			if timeout <= 0 {
				timeout = DefaultWaitTimeout
			}
			found, err := s.WaitForOutput(*step.WaitFor, timeout)
			if err != nil {
				return fmt.Errorf("%s step %d: %w", a.name, i+1, err)
			}
			if !found {
				return fmt.Errorf("%s step %d: %q not seen within %s", a.name, i+1, *step.WaitFor, timeout)
			}
		}
	}
	return nil
}
