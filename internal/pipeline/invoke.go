package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/olivaw/daneel/internal/config"
	"github.com/olivaw/daneel/internal/executor"
	"github.com/olivaw/daneel/internal/progress"
	"github.com/olivaw/daneel/internal/retry"
)

// InvokeOpts parameterize one pipeline invocation.
type InvokeOpts struct {
	Pipeline   string            // identifier or literal path
	Args       map[string]string // initial variable bindings
	Workdir    string
	ProjectDir string
	Progress   io.Writer // nil = silent
	Store      *Store    // nil = no artifacts
	Events     EventLog  // nil = no event logging
}

// Invoke is the pipeline executor's public entry point: it resolves the
// named pipeline relative to the project directory, builds the retry
// controller from the project configuration, and runs the pipeline to
// its terminal result.
func Invoke(ctx context.Context, cfg *config.Config, opts InvokeOpts) (*Result, error) {
	if opts.Workdir == "" {
		opts.Workdir = opts.ProjectDir
	}

	def, err := Resolve(opts.ProjectDir, opts.Pipeline)
	if err != nil {
		return nil, err
	}

	controller := retry.NewController(executor.New(), cfg, opts.Workdir)
	controller.SetProgress(opts.Progress)

	exec := NewExecutor(controller, cfg.DefaultPolicy(), func(id string) (*Definition, error) {
		return Resolve(opts.ProjectDir, id)
	})
	exec.SetStore(opts.Store)
	exec.SetEvents(opts.Events)
	exec.SetProgress(opts.Progress)

	pctx := NewContext(opts.Workdir, opts.ProjectDir, cfg.Project.Name, cfg.Vars, opts.Args)
	if cfg.ProgressFile != "" {
		path := cfg.ProgressFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.ProjectDir, path)
		}
		if frac, err := progress.Fraction(path); err == nil {
			pctx.Set("progress", fmt.Sprintf("%.2f", frac))
		}
	}

	return exec.Run(ctx, def, pctx)
}
