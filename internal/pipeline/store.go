package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Store persists run artifacts on disk: rendered prompts, per-step
// outputs, and the final result JSON.
type Store struct {
	baseDir string // defaults to ~/.daneel/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.daneel/runs, creating the
// directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".daneel", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// SavePrompt writes a rendered step prompt.
func (s *Store) SavePrompt(runID string, stepIndex int, prompt string) error {
	dir := filepath.Join(s.runDir(runID), "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir prompts: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("step-%d.md", stepIndex))
	return os.WriteFile(path, []byte(prompt), 0o644)
}

// SaveStepOutput writes one step record as JSON.
func (s *Store) SaveStepOutput(runID string, rec *StepRecord) error {
	dir := filepath.Join(s.runDir(runID), "steps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir steps: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal step record: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("step-%d.json", rec.Index))
	return os.WriteFile(path, data, 0o644)
}

// SaveResult writes the final result JSON for a run.
func (s *Store) SaveResult(result *Result) error {
	dir := s.runDir(result.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir run dir: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "result.json"), data, 0o644)
}

// LoadResult reads a run's result JSON.
func (s *Store) LoadResult(runID string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), "result.json"))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return &result, nil
}

// ListRuns returns the stored run IDs, most recent first by the result
// file's modification time.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	type runEntry struct {
		id  string
		mod int64
	}
	var runs []runEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(s.baseDir, entry.Name(), "result.json"))
		if err != nil {
			continue
		}
		runs = append(runs, runEntry{id: entry.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].mod > runs[j].mod })

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}
