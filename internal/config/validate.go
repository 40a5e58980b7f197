package config

import (
	"fmt"
	"strings"
	"time"
)

// promptPlaceholder must appear in every agent command template.
const promptPlaceholder = "{{prompt}}"

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	var problems []string

	for name, agent := range c.Agents {
		if strings.TrimSpace(agent.Command) == "" {
			problems = append(problems, fmt.Sprintf("agent %q: command is empty", name))
			continue
		}
		if !strings.Contains(agent.Command, promptPlaceholder) {
			problems = append(problems, fmt.Sprintf("agent %q: command missing %s placeholder", name, promptPlaceholder))
		}
	}

	if c.Defaults.Agent != "" {
		if _, ok := c.Agents[c.Defaults.Agent]; !ok {
			problems = append(problems, fmt.Sprintf("defaults.agent %q is not a configured agent", c.Defaults.Agent))
		}
	}

	if c.Defaults.Timeout != "" {
		if d, err := time.ParseDuration(c.Defaults.Timeout); err != nil {
			problems = append(problems, fmt.Sprintf("defaults.timeout %q: %v", c.Defaults.Timeout, err))
		} else if d <= 0 {
			problems = append(problems, fmt.Sprintf("defaults.timeout %q must be positive", c.Defaults.Timeout))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
