package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olivaw/daneel/internal/actions"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the scripted actions discovered for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := project()
		if err != nil {
			return err
		}

		found, err := actions.Discover(proj)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(w, "No actions found.")
			return nil
		}

		fmt.Fprintf(w, "%-24s %s\n", "NAME", "STEPS")
		fmt.Fprintf(w, "%-24s %s\n", strings.Repeat("-", 24), strings.Repeat("-", 5))
		for _, action := range found {
			scripted, ok := action.(*actions.ScriptedAction)
			if !ok {
				fmt.Fprintf(w, "%-24s %s\n", action.Name(), "-")
				continue
			}
			fmt.Fprintf(w, "%-24s %d\n", scripted.Name(), len(scripted.Steps()))
		}
		return nil
	},
}
