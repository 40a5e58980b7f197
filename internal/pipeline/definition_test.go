package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/olivaw/daneel/internal/retry"
)

func writePipeline(t *testing.T, dir, name, content string) string {
	t.Helper()
	pipeDir := filepath.Join(dir, DirName, "pipelines")
	if err := os.MkdirAll(pipeDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(pipeDir, name+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const implementYAML = `
pipeline:
  name: implement
  steps:
    - agent:
        prompt: "Implement: {{task}}"
        agent: claude
        structured: true
        timeout: 10m
        max_attempts: 2
    - validate:
        command: "go test ./..."
        repair_prompt: "Tests fail:\n{{output.stderr}}\nFix them."
        agent: claude
    - pipeline:
        name: review
        args:
          target: "{{last_output.stdout}}"
        returns: [verdict]
  success:
    - agent:
        prompt: "Summarize what was done."
  fail:
    - agent:
        prompt: "Explain the failure: {{output.stderr}}"
`

func TestLoadDefinition(t *testing.T) {
	path := writePipeline(t, t.TempDir(), "implement", implementYAML)
	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition: %v", err)
	}
	if def.Name != "implement" {
		t.Errorf("name = %q", def.Name)
	}
	if len(def.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(def.Steps))
	}
	if def.Steps[0].Kind != KindAgent || !def.Steps[0].Agent.Structured {
		t.Errorf("step 0 = %+v", def.Steps[0])
	}
	if def.Steps[1].Kind != KindValidate || def.Steps[1].Validate.RepairPrompt == "" {
		t.Errorf("step 1 = %+v", def.Steps[1])
	}
	if def.Steps[2].Kind != KindPipeline || def.Steps[2].Pipeline.Name != "review" {
		t.Errorf("step 2 = %+v", def.Steps[2])
	}
	if len(def.Steps[2].Pipeline.Returns) != 1 || def.Steps[2].Pipeline.Returns[0] != "verdict" {
		t.Errorf("returns = %v", def.Steps[2].Pipeline.Returns)
	}
	if len(def.Success) != 1 || len(def.Fail) != 1 {
		t.Errorf("continuations = %d/%d, want 1/1", len(def.Success), len(def.Fail))
	}

	// Step policies override defaults selectively.
	defaults := retry.Policy{Timeout: time.Minute, MaxAttempts: 5}
	p := def.Steps[0].Agent.Policy(defaults)
	if p.Timeout != 10*time.Minute || p.MaxAttempts != 2 {
		t.Errorf("step 0 policy = %+v", p)
	}
	p = def.Steps[1].Validate.Policy(defaults)
	if p.Timeout != time.Minute || p.MaxAttempts != 5 {
		t.Errorf("step 1 policy = %+v (should inherit defaults)", p)
	}
}

func TestLoadDefinitionNameDefaultsToFilename(t *testing.T) {
	path := writePipeline(t, t.TempDir(), "unnamed", `
pipeline:
  steps:
    - validate:
        command: "true"
`)
	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition: %v", err)
	}
	if def.Name != "unnamed" {
		t.Errorf("name = %q, want unnamed", def.Name)
	}
}

func TestResolveByNameAndPath(t *testing.T) {
	dir := t.TempDir()
	path := writePipeline(t, dir, "implement", implementYAML)

	def, err := Resolve(dir, "implement")
	if err != nil {
		t.Fatalf("Resolve by name: %v", err)
	}
	if def.Name != "implement" {
		t.Errorf("name = %q", def.Name)
	}

	def, err = Resolve("", path)
	if err != nil {
		t.Fatalf("Resolve by path: %v", err)
	}
	if def.Name != "implement" {
		t.Errorf("name = %q", def.Name)
	}

	if _, err := Resolve(dir, "ghost"); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("err = %v, want not-found naming ghost", err)
	}
}

func TestStepRejectsAmbiguousKinds(t *testing.T) {
	_, err := LoadDefinition(writePipeline(t, t.TempDir(), "bad", `
pipeline:
  steps:
    - agent:
        prompt: "p"
      validate:
        command: "c"
`))
	if err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Fatalf("err = %v, want ambiguous-kind rejection", err)
	}
}

func TestStepRejectsNoKind(t *testing.T) {
	_, err := LoadDefinition(writePipeline(t, t.TempDir(), "bad", `
pipeline:
  steps:
    - {}
`))
	if err == nil {
		t.Fatal("expected error for kindless step")
	}
}

func TestDefinitionValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no steps", "pipeline:\n  name: x\n", "no steps"},
		{"empty prompt", "pipeline:\n  steps:\n    - agent:\n        agent: claude\n", "prompt is empty"},
		{"empty command", "pipeline:\n  steps:\n    - validate:\n        agent: claude\n", "command is empty"},
		{"nameless ref", "pipeline:\n  steps:\n    - pipeline:\n        args: {a: b}\n", "no name"},
		{"bad timeout", "pipeline:\n  steps:\n    - agent:\n        prompt: p\n        timeout: banana\n", "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDefinition(writePipeline(t, t.TempDir(), "bad", tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
