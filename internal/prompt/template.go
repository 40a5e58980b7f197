package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	varRe      = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)
	ifOpenRe   = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)
	ifCloseStr = "{{/if}}"
)

// Vars maps variable names to values. Values are strings or nested
// maps reachable through dotted references ({{config.vars.reviewer}}).
type Vars map[string]interface{}

// ResolveError reports template variables that could not be resolved.
type ResolveError struct {
	Missing []string
}

func (e *ResolveError) Error() string {
	return "unresolved template variables: " + strings.Join(e.Missing, ", ")
}

// Render expands a template string with the given variables.
// {{name}} and {{path.to.value}} are replaced with their stringified
// values; any unresolved reference fails with a *ResolveError.
// {{#if name}}...{{/if}} blocks are included only when the referenced
// value exists and is non-empty.
func Render(tmpl string, vars Vars) (string, error) {
	result, err := processConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	var missing []string
	expanded := varRe.ReplaceAllStringFunc(result, func(match string) string {
		m := varRe.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		val, ok := Lookup(vars, m[1])
		if !ok {
			missing = append(missing, m[1])
			return match
		}
		return val
	})

	if len(missing) > 0 {
		return "", &ResolveError{Missing: dedupe(missing)}
	}
	return expanded, nil
}

// Lookup resolves a dotted path through nested maps and returns the
// stringified value.
func Lookup(vars Vars, path string) (string, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(vars)
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = m[seg]
		if !ok {
			return "", false
		}
	}
	return stringify(current)
}

// stringify renders a leaf value for substitution. Maps and slices are
// not substitutable directly; reference their members instead.
func stringify(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case map[string]interface{}:
		// An Output-shaped map referenced bare renders as its stdout.
		if s, ok := val["stdout"].(string); ok {
			return s, true
		}
		return "", false
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		// YAML and JSON numbers arrive as float64; print integers plainly.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case nil:
		return "", false
	default:
		return "", false
	}
}

// processConditionals handles {{#if path}}...{{/if}} blocks, supporting
// nesting. Innermost blocks are processed first by finding the last
// {{#if before each {{/if}}.
func processConditionals(tmpl string, vars Vars) (string, error) {
	result := tmpl
	for {
		closeIdx := strings.Index(result, ifCloseStr)
		if closeIdx == -1 {
			break
		}

		prefix := result[:closeIdx]
		openLocs := ifOpenRe.FindAllStringIndex(prefix, -1)
		if openLocs == nil {
			return "", fmt.Errorf("dangling {{/if}} without matching {{#if}}")
		}

		lastOpen := openLocs[len(openLocs)-1]
		openStart, openEnd := lastOpen[0], lastOpen[1]

		m := ifOpenRe.FindStringSubmatch(prefix[openStart:openEnd])
		if m == nil {
			return "", fmt.Errorf("failed to parse conditional tag: %s", prefix[openStart:openEnd])
		}

		body := result[openEnd:closeIdx]
		closeEnd := closeIdx + len(ifCloseStr)

		var replacement string
		if val, ok := Lookup(vars, m[1]); ok && val != "" {
			replacement = body
		}
		result = result[:openStart] + replacement + result[closeEnd:]
	}

	if loc := ifOpenRe.FindString(result); loc != "" {
		return "", fmt.Errorf("unclosed conditional block: %s", loc)
	}
	return result, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			out = append(out, n)
			seen[n] = true
		}
	}
	return out
}
