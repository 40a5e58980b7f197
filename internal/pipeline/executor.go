package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/olivaw/daneel/internal/executor"
	"github.com/olivaw/daneel/internal/retry"
)

// StepRunner is the retry-controller surface the executor drives.
// *retry.Controller satisfies it.
type StepRunner interface {
	RunAgent(ctx context.Context, prompt string, agentID string, structured bool, policy retry.Policy) (*executor.Output, error)
	RunValidate(ctx context.Context, command string, policy retry.Policy, repair retry.RepairFunc) (*executor.Output, error)
}

// EventLog receives run lifecycle events and step attempts. Implemented
// by db.DB; nil disables logging.
type EventLog interface {
	LogRunEvent(runID, pipeline, event, detail string) error
	LogStep(runID string, stepIndex int, kind string, passed bool, out *executor.Output) error
}

// Resolver loads nested pipeline definitions by identifier.
type Resolver func(id string) (*Definition, error)

// Executor interprets a pipeline definition: it sequences steps against
// one context, dispatches each to the retry controller, and selects the
// success or fail continuation list at the end. It never retries at its
// own level; retry policy belongs to the controller.
type Executor struct {
	runner   StepRunner
	defaults retry.Policy
	resolve  Resolver
	store    *Store   // nil = no artifacts
	events   EventLog // nil = no event logging
	progress io.Writer
}

// NewExecutor creates an Executor. resolve may be nil if no step uses
// nested pipelines.
func NewExecutor(runner StepRunner, defaults retry.Policy, resolve Resolver) *Executor {
	return &Executor{runner: runner, defaults: defaults, resolve: resolve}
}

// SetStore attaches a run artifact store.
func (e *Executor) SetStore(s *Store) { e.store = s }

// SetEvents attaches an event log.
func (e *Executor) SetEvents(log EventLog) { e.events = log }

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (e *Executor) SetProgress(w io.Writer) { e.progress = w }

func (e *Executor) logf(format string, args ...interface{}) {
	if e.progress != nil {
		fmt.Fprintf(e.progress, "  → "+format+"\n", args...)
	}
}

// Run executes def against pctx and returns the terminal result. A
// failed step yields a Result with Success=false and a nil error; an
// error is returned only for cancellation, infrastructure failures, or
// a failed continuation list (*ContinuationError).
func (e *Executor) Run(ctx context.Context, def *Definition, pctx *Context) (*Result, error) {
	result := &Result{
		RunID:      uuid.NewString(),
		Pipeline:   def.Name,
		FailedStep: -1,
		StartedAt:  time.Now().UTC(),
	}
	e.logf("pipeline %s: run %s (%d steps)", def.Name, result.RunID, len(def.Steps))
	e.logEvent(result, "run_started", "")

	failed := false
	var stepErr error
	for i := range def.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := e.runStep(ctx, &def.Steps[i], i, pctx, result.RunID)
		if err != nil {
			// Infrastructure failure or cancellation, not a step outcome.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if rec == nil {
				return nil, err
			}
			stepErr = err
		}
		result.Steps = append(result.Steps, *rec)
		e.logStep(result, rec)
		if rec.Output != nil {
			result.FinalOutput = rec.Output
		}
		if !rec.Passed {
			result.FailedStep = i
			failed = true
			break
		}
	}

	result.Success = !failed
	result.Duration = time.Since(result.StartedAt)

	list, name := def.Success, "success"
	if failed {
		list, name = def.Fail, "fail"
		// The fail list diagnoses the failure, so it sees the failing
		// step's Output as {{output}} (last_output keeps pointing at
		// the last completed step).
		if out := result.Steps[len(result.Steps)-1].Output; out != nil {
			pctx.SetCurrentOutput(out)
		}
		e.logf("pipeline %s: step %d failed: %v", def.Name, result.FailedStep, stepErr)
		e.logEvent(result, "run_failed", fmt.Sprintf("step=%d", result.FailedStep))
	} else {
		e.logEvent(result, "run_succeeded", "")
	}

	if len(list) > 0 {
		e.logf("pipeline %s: running %s continuation (%d steps)", def.Name, name, len(list))
		if err := e.runContinuation(ctx, def, list, name, pctx, result); err != nil {
			e.saveResult(result)
			return result, err
		}
	}

	e.saveResult(result)
	e.logEvent(result, "run_finished", "")
	return result, nil
}

// runContinuation executes a continuation list against the shared
// context. Continuations run at most once; their own failure is
// terminal for the whole invocation and never triggers the opposite
// list.
func (e *Executor) runContinuation(ctx context.Context, def *Definition, list []ActionSpec, name string, pctx *Context, result *Result) error {
	for i := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := e.runStep(ctx, &list[i], i, pctx, result.RunID)
		if rec != nil {
			result.Continuation = append(result.Continuation, *rec)
		}
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return err
		}
		if rec == nil || !rec.Passed {
			cause := err
			if cause == nil {
				cause = fmt.Errorf("step did not pass")
			}
			return &ContinuationError{Pipeline: def.Name, List: name, Step: i, Cause: cause}
		}
	}
	return nil
}

// runStep resolves one step's templates, dispatches it, and records the
// outcome. The returned record is non-nil for every attempted step,
// including failed ones; a nil record means the step could not even be
// dispatched (infrastructure error).
func (e *Executor) runStep(ctx context.Context, spec *ActionSpec, index int, pctx *Context, runID string) (*StepRecord, error) {
	start := time.Now()
	rec := &StepRecord{Index: index, Kind: spec.Kind}

	finish := func(out *executor.Output, err error) (*StepRecord, error) {
		rec.Duration = time.Since(start)
		if out != nil {
			rec.Output = out
		}
		if err != nil {
			rec.Error = err.Error()
			var exhausted *retry.ExhaustedError
			if errors.As(err, &exhausted) && exhausted.LastOutput != nil {
				rec.Output = exhausted.LastOutput
			}
			return rec, err
		}
		rec.Passed = true
		pctx.RecordOutput(out)
		return rec, nil
	}

	switch spec.Kind {
	case KindAgent:
		prompt, err := pctx.Resolve(spec.Agent.Prompt)
		if err != nil {
			return finish(nil, err)
		}
		e.savePrompt(runID, index, prompt)
		out, err := e.runner.RunAgent(ctx, prompt, spec.Agent.Agent, spec.Agent.Structured, spec.Agent.Policy(e.defaults))
		return finish(out, err)

	case KindValidate:
		command, err := pctx.Resolve(spec.Validate.Command)
		if err != nil {
			return finish(nil, err)
		}
		repair := e.repairFunc(spec.Validate, pctx)
		out, err := e.runner.RunValidate(ctx, command, spec.Validate.Policy(e.defaults), repair)
		return finish(out, err)

	case KindPipeline:
		out, err := e.runNested(ctx, spec.Pipeline, pctx)
		return finish(out, err)

	default:
		return nil, fmt.Errorf("step %d: unknown kind %q", index, spec.Kind)
	}
}

// repairFunc builds the corrective callback for a validate step: the
// repair prompt is resolved lazily against the context with the failing
// attempt's output installed, then sent to the step's agent with a
// single-attempt policy (the validate loop owns the retry budget).
func (e *Executor) repairFunc(spec *ValidateSpec, pctx *Context) retry.RepairFunc {
	if spec.RepairPrompt == "" {
		return nil
	}
	return func(ctx context.Context, failed *executor.Output) (*executor.Output, error) {
		pctx.SetCurrentOutput(failed)
		prompt, err := pctx.Resolve(spec.RepairPrompt)
		if err != nil {
			return nil, err
		}
		policy := spec.Policy(e.defaults)
		policy.MaxAttempts = 1
		return e.runner.RunAgent(ctx, prompt, spec.Agent, false, policy)
	}
}

// runNested resolves and executes a nested pipeline with a derived
// context, then copies declared return keys back into the parent.
func (e *Executor) runNested(ctx context.Context, ref *PipelineRef, pctx *Context) (*executor.Output, error) {
	if e.resolve == nil {
		return nil, fmt.Errorf("nested pipeline %q: no resolver configured", ref.Name)
	}
	nested, err := e.resolve(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("nested pipeline %q: %w", ref.Name, err)
	}

	args := make(map[string]string, len(ref.Args))
	for key, tmpl := range ref.Args {
		val, err := pctx.Resolve(tmpl)
		if err != nil {
			return nil, err
		}
		args[key] = val
	}

	child := pctx.Child(args)
	result, err := e.Run(ctx, nested, child)
	if err != nil {
		return nil, err
	}
	pctx.CopyReturns(child, ref.Returns)
	if !result.Success {
		return result.FinalOutput, fmt.Errorf("nested pipeline %q failed at step %d", ref.Name, result.FailedStep)
	}
	return result.FinalOutput, nil
}

func (e *Executor) logEvent(result *Result, event, detail string) {
	if e.events != nil {
		_ = e.events.LogRunEvent(result.RunID, result.Pipeline, event, detail)
	}
}

func (e *Executor) logStep(result *Result, rec *StepRecord) {
	status := "PASS"
	if !rec.Passed {
		status = "FAIL"
	}
	e.logf("step %d (%s): %s (%s)", rec.Index, rec.Kind, status, rec.Duration.Round(time.Millisecond))
	if e.events != nil {
		_ = e.events.LogStep(result.RunID, rec.Index, rec.Kind, rec.Passed, rec.Output)
	}
	if e.store != nil {
		_ = e.store.SaveStepOutput(result.RunID, rec)
	}
}

func (e *Executor) saveResult(result *Result) {
	if e.store != nil {
		_ = e.store.SaveResult(result)
	}
}

func (e *Executor) savePrompt(runID string, index int, prompt string) {
	if e.store != nil {
		_ = e.store.SavePrompt(runID, index, prompt)
	}
}
