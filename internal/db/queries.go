package db

import (
	"fmt"

	"github.com/olivaw/daneel/internal/executor"
)

// LogRunEvent records a pipeline run lifecycle event.
func (d *DB) LogRunEvent(runID, pipeline, event, detail string) error {
	_, err := d.conn.Exec(
		"INSERT INTO run_events (run_id, pipeline, event, detail) VALUES (?, ?, ?, ?)",
		runID, pipeline, event, detail)
	if err != nil {
		return fmt.Errorf("log run event: %w", err)
	}
	return nil
}

// LogStep records the terminal outcome of one pipeline step.
func (d *DB) LogStep(runID string, stepIndex int, kind string, passed bool, out *executor.Output) error {
	exitCode := 0
	timedOut := false
	durationMs := 0
	if out != nil {
		exitCode = out.ExitCode
		timedOut = out.TimedOut
		durationMs = int(out.Duration.Milliseconds())
	}
	_, err := d.conn.Exec(
		`INSERT INTO step_records (run_id, step_index, kind, passed, exit_code, timed_out, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stepIndex, kind, passed, exitCode, timedOut, durationMs)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

// LogSessionEvent records a supervisor session lifecycle event.
func (d *DB) LogSessionEvent(sessionID, command, event, detail string) error {
	_, err := d.conn.Exec(
		"INSERT INTO session_events (session_id, command, event, detail) VALUES (?, ?, ?, ?)",
		sessionID, command, event, detail)
	if err != nil {
		return fmt.Errorf("log session event: %w", err)
	}
	return nil
}

// RunSummary is one row of the recent-runs listing.
type RunSummary struct {
	RunID     string
	Pipeline  string
	Event     string
	Detail    string
	Timestamp string
}

// RecentRuns returns the latest lifecycle event per run, newest first.
func (d *DB) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := d.conn.Query(`
		SELECT run_id, pipeline, event, COALESCE(detail, ''), MAX(timestamp)
		FROM run_events
		GROUP BY run_id
		ORDER BY MAX(timestamp) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Pipeline, &r.Event, &r.Detail, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StepRow is one row of a run's step listing.
type StepRow struct {
	StepIndex  int
	Kind       string
	Passed     bool
	ExitCode   int
	TimedOut   bool
	DurationMs int
}

// StepsForRun returns the recorded steps of one run in order.
func (d *DB) StepsForRun(runID string) ([]StepRow, error) {
	rows, err := d.conn.Query(`
		SELECT step_index, kind, passed, exit_code, timed_out, duration_ms
		FROM step_records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []StepRow
	for rows.Next() {
		var s StepRow
		if err := rows.Scan(&s.StepIndex, &s.Kind, &s.Passed, &s.ExitCode, &s.TimedOut, &s.DurationMs); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
