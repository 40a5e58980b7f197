package pipeline

import (
	"fmt"
	"time"

	"github.com/olivaw/daneel/internal/retry"
	"gopkg.in/yaml.v3"
)

// Step kinds. ActionSpec is a tagged variant: exactly one of the kind
// fields is set, selected by Kind, and the executor dispatches over it
// exhaustively.
const (
	KindAgent    = "agent"
	KindValidate = "validate"
	KindPipeline = "pipeline"
)

// ActionSpec is one declarative pipeline step.
type ActionSpec struct {
	Kind     string
	Agent    *AgentSpec
	Validate *ValidateSpec
	Pipeline *PipelineRef
}

// AgentSpec invokes a coding agent with a templated prompt.
type AgentSpec struct {
	Prompt      string `yaml:"prompt"`
	Agent       string `yaml:"agent"`
	Structured  bool   `yaml:"structured"`
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// ValidateSpec runs a templated shell command; on failure the repair
// prompt (if any) is sent to the agent before the command is retried.
type ValidateSpec struct {
	Command      string `yaml:"command"`
	RepairPrompt string `yaml:"repair_prompt"`
	Agent        string `yaml:"agent"`
	Timeout      string `yaml:"timeout"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

// PipelineRef invokes another pipeline definition with argument
// bindings; Returns names context keys copied back into the parent.
type PipelineRef struct {
	Name    string            `yaml:"name"`
	Args    map[string]string `yaml:"args"`
	Returns []string          `yaml:"returns"`
}

// UnmarshalYAML decodes a step mapping with exactly one kind key.
func (s *ActionSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Agent    *AgentSpec    `yaml:"agent"`
		Validate *ValidateSpec `yaml:"validate"`
		Pipeline *PipelineRef  `yaml:"pipeline"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	count := 0
	if raw.Agent != nil {
		count++
		s.Kind, s.Agent = KindAgent, raw.Agent
	}
	if raw.Validate != nil {
		count++
		s.Kind, s.Validate = KindValidate, raw.Validate
	}
	if raw.Pipeline != nil {
		count++
		s.Kind, s.Pipeline = KindPipeline, raw.Pipeline
	}

	switch count {
	case 0:
		return fmt.Errorf("line %d: step must be one of agent, validate, pipeline", node.Line)
	case 1:
		return nil
	default:
		return fmt.Errorf("line %d: step declares %d kinds, want exactly one", node.Line, count)
	}
}

// policy builds the step's retry policy, falling back to defaults for
// unset fields. Definition validation guarantees the duration parses.
func stepPolicy(timeout string, maxAttempts int, defaults retry.Policy) retry.Policy {
	p := defaults
	if timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			p.Timeout = d
		}
	}
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	return p
}

// Policy returns the effective retry policy for an agent step.
func (a *AgentSpec) Policy(defaults retry.Policy) retry.Policy {
	return stepPolicy(a.Timeout, a.MaxAttempts, defaults)
}

// Policy returns the effective retry policy for a validate step.
func (v *ValidateSpec) Policy(defaults retry.Policy) retry.Policy {
	return stepPolicy(v.Timeout, v.MaxAttempts, defaults)
}

// validate checks one step spec's invariants.
func (s *ActionSpec) validate(index int) error {
	switch s.Kind {
	case KindAgent:
		if s.Agent.Prompt == "" {
			return fmt.Errorf("step %d: agent prompt is empty", index)
		}
		return checkPolicyFields(index, s.Agent.Timeout, s.Agent.MaxAttempts)
	case KindValidate:
		if s.Validate.Command == "" {
			return fmt.Errorf("step %d: validate command is empty", index)
		}
		return checkPolicyFields(index, s.Validate.Timeout, s.Validate.MaxAttempts)
	case KindPipeline:
		if s.Pipeline.Name == "" {
			return fmt.Errorf("step %d: pipeline reference has no name", index)
		}
		return nil
	default:
		return fmt.Errorf("step %d: unknown kind %q", index, s.Kind)
	}
}

func checkPolicyFields(index int, timeout string, maxAttempts int) error {
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("step %d: timeout %q: %w", index, timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("step %d: timeout %q must be positive", index, timeout)
		}
	}
	if maxAttempts < 0 {
		return fmt.Errorf("step %d: max_attempts must be >= 1, got %d", index, maxAttempts)
	}
	return nil
}
