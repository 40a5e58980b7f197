package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/olivaw/daneel/internal/executor"
)

// StepRecord is one entry in a result's diagnostic trace.
type StepRecord struct {
	Index    int              `json:"index"`
	Kind     string           `json:"kind"`
	Passed   bool             `json:"passed"`
	Output   *executor.Output `json:"output,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// Result is the terminal record of a pipeline invocation. Steps holds
// one record per step actually attempted, in order; Continuation holds
// the records of whichever continuation list ran, if any.
type Result struct {
	RunID        string           `json:"run_id"`
	Pipeline     string           `json:"pipeline"`
	Success      bool             `json:"success"`
	FailedStep   int              `json:"failed_step"` // -1 when no step failed
	FinalOutput  *executor.Output `json:"final_output,omitempty"`
	Steps        []StepRecord     `json:"steps"`
	Continuation []StepRecord     `json:"continuation,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	Duration     time.Duration    `json:"duration"`
}

// JSON returns the result as indented JSON.
func (r *Result) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ContinuationError reports that a continuation list itself failed.
// It is terminal for the whole invocation: the opposite continuation
// list is never attempted.
type ContinuationError struct {
	Pipeline string
	List     string // "success" or "fail"
	Step     int
	Cause    error
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("pipeline %s: %s continuation failed at step %d: %v",
		e.Pipeline, e.List, e.Step, e.Cause)
}

func (e *ContinuationError) Unwrap() error {
	return e.Cause
}
