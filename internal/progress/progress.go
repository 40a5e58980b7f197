// Package progress computes the completion fraction of a markdown
// checklist, exposed to pipelines as the progress context variable.
package progress

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Fraction returns checked/total for the task-list items in the file
// at path. A file with no task items reports 0.
func Fraction(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open checklist: %w", err)
	}
	defer f.Close()

	var total, checked int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "- [x]"), strings.HasPrefix(line, "- [X]"),
			strings.HasPrefix(line, "* [x]"), strings.HasPrefix(line, "* [X]"):
			total++
			checked++
		case strings.HasPrefix(line, "- [ ]"), strings.HasPrefix(line, "* [ ]"):
			total++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read checklist: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(checked) / float64(total), nil
}
