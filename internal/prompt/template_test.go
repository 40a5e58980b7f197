package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestRenderSimpleVariables(t *testing.T) {
	out, err := Render("fix {{task}} in {{workdir}}", Vars{
		"task":    "the bug",
		"workdir": "/tmp/proj",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "fix the bug in /tmp/proj" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderDottedPaths(t *testing.T) {
	vars := Vars{
		"output": map[string]interface{}{
			"stdout":    "43 tests passed",
			"exit_code": 0,
		},
		"config": map[string]interface{}{
			"vars": map[string]interface{}{
				"reviewer": "alice",
			},
		},
	}
	out, err := Render("{{output.stdout}} / exit {{output.exit_code}} / ping {{config.vars.reviewer}}", vars)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "43 tests passed / exit 0 / ping alice" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderWhitespaceInsideBraces(t *testing.T) {
	out, err := Render("got {{ last_output }}", Vars{"last_output": "x"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "got x" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderMissingVariableFails(t *testing.T) {
	_, err := Render("see {{ last_output }} here", Vars{"other": "x"})
	var resolveErr *ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("err = %v, want *ResolveError", err)
	}
	if len(resolveErr.Missing) != 1 || resolveErr.Missing[0] != "last_output" {
		t.Errorf("Missing = %v", resolveErr.Missing)
	}
}

func TestRenderMissingNestedPath(t *testing.T) {
	_, err := Render("{{output.no_such_key}}", Vars{
		"output": map[string]interface{}{"stdout": "x"},
	})
	var resolveErr *ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("err = %v, want *ResolveError", err)
	}
}

func TestRenderCollectsAllMissing(t *testing.T) {
	_, err := Render("{{a}} {{b}} {{a}}", Vars{})
	var resolveErr *ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("err = %v, want *ResolveError", err)
	}
	if len(resolveErr.Missing) != 2 {
		t.Errorf("Missing = %v, want deduped [a b]", resolveErr.Missing)
	}
}

func TestConditionalBlocks(t *testing.T) {
	tmpl := "start{{#if extra}} extra={{extra}}{{/if}} end"

	out, err := Render(tmpl, Vars{"extra": "yes"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "start extra=yes end" {
		t.Errorf("out = %q", out)
	}

	out, err = Render(tmpl, Vars{})
	if err != nil {
		t.Fatalf("Render (unset): %v", err)
	}
	if out != "start end" {
		t.Errorf("out = %q", out)
	}

	out, err = Render(tmpl, Vars{"extra": ""})
	if err != nil {
		t.Fatalf("Render (empty): %v", err)
	}
	if out != "start end" {
		t.Errorf("empty value should skip block, got %q", out)
	}
}

func TestNestedConditionals(t *testing.T) {
	tmpl := "{{#if a}}A{{#if b}}B{{/if}}{{/if}}"
	out, err := Render(tmpl, Vars{"a": "1", "b": "1"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "AB" {
		t.Errorf("out = %q", out)
	}
	out, err = Render(tmpl, Vars{"a": "1"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "A" {
		t.Errorf("out = %q", out)
	}
}

func TestUnbalancedConditionals(t *testing.T) {
	if _, err := Render("{{#if a}}body", Vars{"a": "1"}); err == nil {
		t.Error("expected error for unclosed block")
	}
	if _, err := Render("body{{/if}}", Vars{}); err == nil {
		t.Error("expected error for dangling close")
	}
}

func TestStringifyNumbers(t *testing.T) {
	out, err := Render("{{n}} {{f}}", Vars{"n": float64(7), "f": 1.5})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "7 1.5" {
		t.Errorf("out = %q", out)
	}
}

func TestBareOutputReferenceRendersStdout(t *testing.T) {
	out, err := Render("{{output}}", Vars{
		"output": map[string]interface{}{"stdout": "captured text", "exit_code": 0},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "captured text" {
		t.Errorf("out = %q", out)
	}
}

func TestPlainMapNotSubstitutable(t *testing.T) {
	_, err := Render("{{config}}", Vars{
		"config": map[string]interface{}{"vars": map[string]interface{}{}},
	})
	if err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("err = %v, want resolve failure naming config", err)
	}
}
