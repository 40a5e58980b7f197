package config

import (
	"fmt"
	"strings"
)

// ResolveAgent builds the shell command line for invoking the named
// agent with the given prompt. An empty agentID resolves to the
// configured default agent. The prompt is shell-quoted before it
// replaces the {{prompt}} placeholder, so prompts may contain any text.
func (c *Config) ResolveAgent(agentID string, prompt string, structured bool) (string, error) {
	if agentID == "" {
		agentID = c.Defaults.Agent
	}
	if agentID == "" {
		return "", fmt.Errorf("no agent specified and no default agent configured")
	}
	agent, ok := c.Agents[agentID]
	if !ok {
		return "", fmt.Errorf("agent %q not configured", agentID)
	}

	command := strings.ReplaceAll(agent.Command, promptPlaceholder, shellQuote(prompt))
	if structured && agent.StructuredFlag != "" {
		command += " " + agent.StructuredFlag
	}
	return command, nil
}

// shellQuote wraps s in single quotes, escaping embedded single quotes
// so the result is safe to splice into an `sh -c` command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
