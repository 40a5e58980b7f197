package progress

import (
	"os"
	"path/filepath"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFraction(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    float64
	}{
		{"half done", "# Tasks\n- [x] one\n- [ ] two\n", 0.5},
		{"all done", "- [x] one\n- [X] two\n", 1},
		{"none done", "- [ ] one\n- [ ] two\n- [ ] three\n", 0},
		{"no items", "just prose\n", 0},
		{"star bullets", "* [x] one\n* [ ] two\n", 0.5},
		{"indented items", "  - [x] nested\n  - [ ] nested two\n", 0.5},
		{"ignores non-task lines", "- [x] one\n- plain bullet\ntext\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Fraction(writeList(t, tc.content))
			if err != nil {
				t.Fatalf("Fraction: %v", err)
			}
			if got != tc.want {
				t.Errorf("Fraction = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFractionMissingFile(t *testing.T) {
	if _, err := Fraction(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Error("expected error for missing file")
	}
}
