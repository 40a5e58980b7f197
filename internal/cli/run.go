package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/olivaw/daneel/internal/config"
	"github.com/olivaw/daneel/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Execute a pipeline to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := project()
		if err != nil {
			return err
		}
		cfg, err := config.LoadDefault(proj)
		if err != nil {
			return err
		}

		rawArgs, _ := cmd.Flags().GetStringArray("arg")
		pipelineArgs, err := parseArgs(rawArgs)
		if err != nil {
			return err
		}

		workdir, _ := cmd.Flags().GetString("workdir")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := pipeline.DefaultStore()
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}

		opts := pipeline.InvokeOpts{
			Pipeline:   args[0],
			Args:       pipelineArgs,
			Workdir:    workdir,
			ProjectDir: proj,
			Store:      store,
		}
		if !asJSON {
			opts.Progress = cmd.OutOrStdout()
		}

		if eventDB, err := openDB(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log unavailable: %v\n", err)
		} else {
			defer eventDB.Close()
			opts.Events = eventDB
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := pipeline.Invoke(ctx, cfg, opts)
		if err != nil {
			return err
		}

		if asJSON {
			text, err := result.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
		} else {
			printResult(cmd, result)
		}

		if !result.Success {
			return fmt.Errorf("pipeline %s failed at step %d", result.Pipeline, result.FailedStep+1)
		}
		return nil
	},
}

func parseArgs(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

func printResult(cmd *cobra.Command, result *pipeline.Result) {
	w := cmd.OutOrStdout()

	status := "SUCCEEDED"
	if !result.Success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "\nRun %s: %s %s (%s)\n", result.RunID, result.Pipeline, status, result.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "%-5s %-10s %-7s %s\n", "STEP", "KIND", "PASSED", "DURATION")
	for _, step := range result.Steps {
		fmt.Fprintf(w, "%-5d %-10s %-7t %s\n", step.Index+1, step.Kind, step.Passed, step.Duration.Round(time.Millisecond))
	}
	for _, step := range result.Continuation {
		fmt.Fprintf(w, "%-5s %-10s %-7t %s\n", "cont", step.Kind, step.Passed, step.Duration.Round(time.Millisecond))
	}

	if !result.Success {
		failed := result.Steps[len(result.Steps)-1]
		if failed.Error != "" {
			fmt.Fprintf(w, "\nStep %d error: %s\n", failed.Index+1, failed.Error)
		}
		if failed.Output != nil && failed.Output.Stderr != "" {
			fmt.Fprintf(w, "Last stderr:\n%s\n", strings.TrimRight(failed.Output.Stderr, "\n"))
		}
	}
}

func init() {
	runCmd.Flags().StringArray("arg", nil, "pipeline argument as key=value (repeatable)")
	runCmd.Flags().String("workdir", "", "working directory for step commands (default: project dir)")
	runCmd.Flags().Bool("json", false, "print the full result as JSON")
}
