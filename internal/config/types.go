package config

import (
	"time"

	"github.com/olivaw/daneel/internal/retry"
)

// Config is the top-level project configuration parsed from daneel.yaml.
type Config struct {
	Project      Project                `yaml:"project"`
	Agents       map[string]Agent       `yaml:"agents"`
	Defaults     Defaults               `yaml:"defaults"`
	Vars         map[string]interface{} `yaml:"vars"`
	ProgressFile string                 `yaml:"progress_file"`
}

// Project holds project metadata.
type Project struct {
	Name string `yaml:"name"`
}

// Agent defines how to invoke one external coding agent. Command is a
// shell command line containing a {{prompt}} placeholder; the prompt is
// shell-quoted before substitution. StructuredFlag, when set, is
// appended to the command for steps that request structured output.
type Agent struct {
	Command        string `yaml:"command"`
	StructuredFlag string `yaml:"structured_flag"`
}

// Defaults holds values applied to pipeline steps that don't specify
// their own.
type Defaults struct {
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
	Agent       string `yaml:"agent"`
}

// DefaultPolicy returns the retry policy built from the defaults block.
// Load guarantees the duration parses.
func (c *Config) DefaultPolicy() retry.Policy {
	d, err := time.ParseDuration(c.Defaults.Timeout)
	if err != nil || d <= 0 {
		d = 5 * time.Minute
	}
	return retry.Policy{Timeout: d, MaxAttempts: c.Defaults.MaxAttempts}
}
