package retry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseStructured extracts a JSON object from agent output. Agents
// frequently wrap the payload in a markdown fence or surround it with
// prose, so after a direct unmarshal fails we try a fenced block and
// then the outermost brace-delimited slice.
func ParseStructured(text string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty output")
	}

	for _, candidate := range structuredCandidates(trimmed) {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("no JSON object found in output")
}

// structuredCandidates returns the substrings worth attempting to
// unmarshal, most specific first.
func structuredCandidates(text string) []string {
	candidates := []string{text}

	// ```json ... ``` (or a bare ``` fence)
	if idx := strings.Index(text, "```"); idx != -1 {
		rest := text[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			candidates = append(candidates, strings.TrimSpace(rest[:end]))
		}
	}

	// Outermost { ... } slice.
	open := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if open != -1 && end > open {
		candidates = append(candidates, text[open:end+1])
	}
	return candidates
}
