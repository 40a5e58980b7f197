package actions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/olivaw/daneel/internal/supervise"
)

const approveYAML = `action:
  name: approve-plan
  steps:
    - wait_for: "Proceed?"
      timeout: 2s
    - send: "y\r"
`

func writeAction(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeAction(t, t.TempDir(), "approve.yaml", approveYAML)

	action, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if action.Name() != "approve-plan" {
		t.Errorf("name = %q", action.Name())
	}
	steps := action.Steps()
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}
	if steps[0].WaitFor == nil || *steps[0].WaitFor != "Proceed?" {
		t.Errorf("step 1 = %+v, want wait_for Proceed?", steps[0])
	}
	if steps[0].Timeout != 2*time.Second {
		t.Errorf("step 1 timeout = %s", steps[0].Timeout)
	}
	if steps[1].Send == nil || *steps[1].Send != "y\r" {
		t.Errorf("step 2 = %+v, want send y\\r", steps[1])
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "nameless",
			yaml:    "action:\n  steps:\n    - send: \"y\"\n",
			wantErr: "no name",
		},
		{
			name:    "stepless",
			yaml:    "action:\n  name: empty\n",
			wantErr: "no steps",
		},
		{
			name:    "ambiguous step",
			yaml:    "action:\n  name: both\n  steps:\n    - send: \"y\"\n      wait_for: \"x\"\n",
			wantErr: "exactly one",
		},
		{
			name:    "neither",
			yaml:    "action:\n  name: neither\n  steps:\n    - timeout: 5s\n",
			wantErr: "exactly one",
		},
		{
			name:    "timeout on send",
			yaml:    "action:\n  name: odd\n  steps:\n    - send: \"y\"\n      timeout: 5s\n",
			wantErr: "timeout only applies",
		},
		{
			name:    "bad timeout",
			yaml:    "action:\n  name: bad\n  steps:\n    - wait_for: \"x\"\n      timeout: soonish\n",
			wantErr: "invalid timeout",
		},
	}

	dir := t.TempDir()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeAction(t, dir, "case.yaml", tc.yaml)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadDirMissingIsEmpty(t *testing.T) {
	actions, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("actions = %d, want 0", len(actions))
	}
}

func TestLoadDirSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeAction(t, dir, "approve.yaml", approveYAML)
	writeAction(t, dir, "README.md", "not an action")

	actions, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
}

func TestDiscoverEnvOverridesProject(t *testing.T) {
	project := t.TempDir()
	projectActions := filepath.Join(project, "daneel", "actions")
	if err := os.MkdirAll(projectActions, 0o755); err != nil {
		t.Fatal(err)
	}
	writeAction(t, projectActions, "approve.yaml", approveYAML)
	writeAction(t, projectActions, "retry.yaml",
		"action:\n  name: retry\n  steps:\n    - send: \"r\"\n")

	envDir := t.TempDir()
	writeAction(t, envDir, "approve.yaml",
		"action:\n  name: approve-plan\n  steps:\n    - send: \"override\"\n")
	t.Setenv(EnvDir, envDir)

	found, err := Discover(project)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	byName := make(map[string]supervise.Action)
	for _, a := range found {
		byName[a.Name()] = a
	}
	if len(byName) != 2 {
		t.Fatalf("actions = %v, want approve-plan and retry", byName)
	}
	// Env dir wins the name collision: its version has one send step.
	approve := byName["approve-plan"].(*ScriptedAction)
	if len(approve.Steps()) != 1 || approve.Steps()[0].Send == nil {
		t.Errorf("env definition did not take precedence: %+v", approve.Steps())
	}
}

func TestExecuteAgainstLiveSession(t *testing.T) {
	s, err := supervise.Start(
		[]string{"sh", "-c", `echo "Proceed?"; read line; echo "answer: $line"`},
		nil, supervise.StartOpts{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Terminate()

	send := "yes\n"
	wait := "Proceed?"
	action := &ScriptedAction{name: "approve", steps: []Step{
		{WaitFor: &wait, Timeout: 2 * time.Second},
		{Send: &send},
	}}

	if err := action.Execute(s); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if found, _ := s.WaitForOutput("answer: yes", 2*time.Second); !found {
		t.Error("scripted input did not reach the process")
	}
}

func TestExecuteWaitTimeoutFails(t *testing.T) {
	s, err := supervise.Start([]string{"sleep", "5"}, nil, supervise.StartOpts{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Terminate()

	wait := "NEVER"
	action := &ScriptedAction{name: "stuck", steps: []Step{
		{WaitFor: &wait, Timeout: 200 * time.Millisecond},
	}}

	err = action.Execute(s)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "not seen within") {
		t.Errorf("error = %v", err)
	}
	if s.Closed() {
		t.Error("session terminated by a failed action")
	}
}
