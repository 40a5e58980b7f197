package retry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olivaw/daneel/internal/executor"
)

// Policy bounds one retried operation: per-attempt wall-clock timeout
// and the total attempt budget.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", p.Timeout)
	}
	return nil
}

// ExhaustedError reports that every attempt of an operation failed.
// LastOutput carries the final attempt's captured output for diagnostics.
type ExhaustedError struct {
	Op         string
	Attempts   int
	LastOutput *executor.Output
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%s failed after %d attempts", e.Op, e.Attempts)
	if e.LastOutput == nil {
		return msg
	}
	if e.LastOutput.TimedOut {
		return msg + " (last attempt timed out)"
	}
	detail := strings.TrimSpace(e.LastOutput.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.LastOutput.Stdout)
	}
	if detail != "" {
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		msg += ": " + detail
	}
	return msg
}

// RepairFunc is a corrective step invoked between failed validation
// attempts. It receives the failing attempt's output and returns the
// repair step's own output. A returned error aborts the remaining
// retries; a failing Output does not.
type RepairFunc func(ctx context.Context, failed *executor.Output) (*executor.Output, error)

// Runner abstracts command execution for testability.
type Runner interface {
	RunShell(ctx context.Context, dir string, command string, timeout time.Duration) (*executor.Output, error)
}

// AgentResolver maps an agent identifier plus a prompt to a runnable
// shell command line.
type AgentResolver interface {
	ResolveAgent(agentID string, prompt string, structured bool) (string, error)
}

// Controller wraps the bounded executor with a retry budget and
// exponential backoff. One controller serves one working directory.
type Controller struct {
	runner      Runner
	agents      AgentResolver
	dir         string
	backoffBase time.Duration
	backoffMax  time.Duration
	progress    io.Writer // live progress output; nil = silent
}

// NewController creates a Controller executing in dir.
func NewController(runner Runner, agents AgentResolver, dir string) *Controller {
	return &Controller{
		runner:      runner,
		agents:      agents,
		dir:         dir,
		backoffBase: time.Second,
		backoffMax:  30 * time.Second,
	}
}

// SetBackoff overrides the backoff base and cap (for testing).
func (c *Controller) SetBackoff(base, max time.Duration) {
	c.backoffBase = base
	c.backoffMax = max
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (c *Controller) SetProgress(w io.Writer) {
	c.progress = w
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.progress != nil {
		fmt.Fprintf(c.progress, "  → "+format+"\n", args...)
	}
}

// structuredInstruction is appended to prompts that request a
// machine-parseable response.
const structuredInstruction = "\n\nRespond with a single JSON object and nothing else. " +
	"Do not wrap it in prose."

// RunAgent invokes the named agent with the given prompt, retrying up
// to policy.MaxAttempts while the attempt fails. When structured is
// set, the prompt demands a JSON response and the captured stdout is
// parsed into Output.Structured; a parse failure counts as a failed
// attempt even on exit 0.
func (c *Controller) RunAgent(ctx context.Context, prompt string, agentID string, structured bool, policy Policy) (*executor.Output, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if structured {
		prompt += structuredInstruction
	}
	command, err := c.agents.ResolveAgent(agentID, prompt, structured)
	if err != nil {
		return nil, err
	}

	var last *executor.Output
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := c.wait(ctx, attempt); err != nil {
			return nil, err
		}
		c.logf("agent %s: attempt %d/%d", agentID, attempt, policy.MaxAttempts)

		out, err := c.runner.RunShell(ctx, c.dir, command, policy.Timeout)
		if err != nil {
			return nil, fmt.Errorf("run agent %q: %w", agentID, err)
		}
		last = out

		if out.Failed() {
			c.logf("agent %s: attempt %d failed (exit %d, timed_out=%v)", agentID, attempt, out.ExitCode, out.TimedOut)
			continue
		}
		if structured {
			payload, perr := ParseStructured(out.Stdout)
			if perr != nil {
				c.logf("agent %s: attempt %d produced unparseable output: %v", agentID, attempt, perr)
				continue
			}
			out.Structured = payload
		}
		return out, nil
	}
	return nil, &ExhaustedError{Op: fmt.Sprintf("agent %q", agentID), Attempts: policy.MaxAttempts, LastOutput: last}
}

// RunValidate runs command until it succeeds or the attempt budget is
// exhausted. After each failed attempt the repair callback (if any) is
// invoked with the failing output before the command is re-attempted.
// Only executions of command consume attempts; the repair step's own
// output is discarded. A repair error aborts immediately.
func (c *Controller) RunValidate(ctx context.Context, command string, policy Policy, repair RepairFunc) (*executor.Output, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var last *executor.Output
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := c.wait(ctx, attempt); err != nil {
			return nil, err
		}
		c.logf("validate: attempt %d/%d: %s", attempt, policy.MaxAttempts, command)

		out, err := c.runner.RunShell(ctx, c.dir, command, policy.Timeout)
		if err != nil {
			return nil, fmt.Errorf("run validate command: %w", err)
		}
		last = out

		if !out.Failed() {
			return out, nil
		}
		c.logf("validate: attempt %d failed (exit %d, timed_out=%v)", attempt, out.ExitCode, out.TimedOut)

		if repair != nil && attempt < policy.MaxAttempts {
			c.logf("validate: running repair step")
			if _, err := repair(ctx, out); err != nil {
				return nil, fmt.Errorf("repair step: %w", err)
			}
		}
	}
	return nil, &ExhaustedError{Op: fmt.Sprintf("validate %q", command), Attempts: policy.MaxAttempts, LastOutput: last}
}

// wait applies exponential backoff before every attempt after the
// first: base<<(attempt-2), capped at backoffMax.
func (c *Controller) wait(ctx context.Context, attempt int) error {
	if attempt <= 1 {
		return nil
	}
	delay := c.backoffBase << (attempt - 2)
	if delay > c.backoffMax {
		delay = c.backoffMax
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
