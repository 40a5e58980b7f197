package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline runs, or one run's steps with --run",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventDB, err := openDB()
		if err != nil {
			return err
		}
		defer eventDB.Close()

		w := cmd.OutOrStdout()

		runID, _ := cmd.Flags().GetString("run")
		if runID != "" {
			steps, err := eventDB.StepsForRun(runID)
			if err != nil {
				return err
			}
			if len(steps) == 0 {
				fmt.Fprintf(w, "No steps recorded for run %s.\n", runID)
				return nil
			}
			fmt.Fprintf(w, "%-5s %-10s %-7s %-5s %-9s %s\n", "STEP", "KIND", "PASSED", "EXIT", "TIMED_OUT", "DURATION")
			for _, s := range steps {
				fmt.Fprintf(w, "%-5d %-10s %-7t %-5d %-9t %s\n",
					s.StepIndex+1, s.Kind, s.Passed, s.ExitCode, s.TimedOut,
					(time.Duration(s.DurationMs) * time.Millisecond).String())
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := eventDB.RecentRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-38s %-16s %-14s %s\n", "RUN", "PIPELINE", "EVENT", "TIMESTAMP")
		fmt.Fprintf(w, "%-38s %-16s %-14s %s\n",
			strings.Repeat("-", 38),
			strings.Repeat("-", 16),
			strings.Repeat("-", 14),
			strings.Repeat("-", 9))
		for _, r := range runs {
			fmt.Fprintf(w, "%-38s %-16s %-14s %s\n", r.RunID, r.Pipeline, r.Event, r.Timestamp)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("run", "", "show the steps of one run")
	statusCmd.Flags().Int("limit", 20, "number of recent runs to show")
}
