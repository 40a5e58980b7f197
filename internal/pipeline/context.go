package pipeline

import (
	"github.com/olivaw/daneel/internal/executor"
	"github.com/olivaw/daneel/internal/prompt"
)

// Context carries the mutable variable bindings visible to template
// expansion during one pipeline invocation. Exactly one context exists
// per invocation; nested pipelines receive a derived copy.
type Context struct {
	vars prompt.Vars
}

// NewContext builds the root context for a pipeline invocation.
// configVars and args may be nil.
func NewContext(workdir, projectDir string, projectName string, configVars map[string]interface{}, args map[string]string) *Context {
	vars := prompt.Vars{
		"workdir":     workdir,
		"project_dir": projectDir,
		"config": map[string]interface{}{
			"name": projectName,
			"vars": copyAny(configVars),
		},
	}
	for k, v := range args {
		vars[k] = v
	}
	return &Context{vars: vars}
}

// Vars exposes the bindings for template resolution.
func (c *Context) Vars() prompt.Vars {
	return c.vars
}

// Set binds a top-level variable.
func (c *Context) Set(key string, value interface{}) {
	c.vars[key] = value
}

// Get returns a top-level binding.
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.vars[key]
	return v, ok
}

// Resolve expands a template string against the context.
func (c *Context) Resolve(tmpl string) (string, error) {
	return prompt.Render(tmpl, c.vars)
}

// RecordOutput installs a completed step's output. Both output and
// last_output point at it until the next step runs; mid-step failing
// attempts overwrite only output via SetCurrentOutput.
func (c *Context) RecordOutput(out *executor.Output) {
	vars := OutputVars(out)
	c.vars["output"] = vars
	c.vars["last_output"] = vars
}

// SetCurrentOutput overwrites the output binding without touching
// last_output. Used to expose a failing attempt to repair prompts.
func (c *Context) SetCurrentOutput(out *executor.Output) {
	c.vars["output"] = OutputVars(out)
}

// Child derives a context for a nested pipeline. The copy shares
// nested read-only values but mutations of top-level bindings never
// reach the parent.
func (c *Context) Child(args map[string]string) *Context {
	vars := make(prompt.Vars, len(c.vars)+len(args))
	for k, v := range c.vars {
		vars[k] = v
	}
	// A nested pipeline starts with no step outputs of its own.
	delete(vars, "output")
	delete(vars, "last_output")
	for k, v := range args {
		vars[k] = v
	}
	return &Context{vars: vars}
}

// CopyReturns copies the declared return keys from a child context back
// into this one. Missing keys are skipped.
func (c *Context) CopyReturns(child *Context, keys []string) {
	for _, key := range keys {
		if v, ok := child.vars[key]; ok {
			c.vars[key] = v
		}
	}
}

// OutputVars flattens an Output into the template-visible map: stdout,
// stderr, exit_code, timed_out, plus any structured payload keys that
// don't collide with the core fields.
func OutputVars(out *executor.Output) map[string]interface{} {
	m := map[string]interface{}{
		"stdout":    out.Stdout,
		"stderr":    out.Stderr,
		"exit_code": out.ExitCode,
		"timed_out": out.TimedOut,
	}
	for k, v := range out.Structured {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return m
}

func copyAny(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
