package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olivaw/daneel/internal/actions"
	"github.com/olivaw/daneel/internal/supervise"
)

var attachCmd = &cobra.Command{
	Use:   "attach [flags] -- <command...>",
	Short: "Supervise an interactive agent session",
	Long: `attach spawns the command, mirrors its output, and passes your
keystrokes through. The shortcut key (default Ctrl-A) suspends
pass-through and opens a menu of the project's scripted actions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := project()
		if err != nil {
			return err
		}

		shortcutName, _ := cmd.Flags().GetString("shortcut")
		shortcut, err := parseShortcut(shortcutName)
		if err != nil {
			return err
		}

		loaded, err := actions.Discover(proj)
		if err != nil {
			return err
		}

		workdir, _ := cmd.Flags().GetString("workdir")
		opts := supervise.StartOpts{Dir: workdir, Mirror: cmd.OutOrStdout()}

		if eventDB, err := openDB(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log unavailable: %v\n", err)
		} else {
			defer eventDB.Close()
			opts.Events = eventDB
		}

		session, err := supervise.Start(args, loaded, opts)
		if err != nil {
			return err
		}

		if err := session.Interact(shortcut); err != nil {
			_ = session.Terminate()
			return err
		}
		return session.Wait()
	},
}

// parseShortcut maps a spelling like "ctrl-a", "^a", or "a" to its
// control byte.
func parseShortcut(name string) (byte, error) {
	s := strings.ToLower(name)
	s = strings.TrimPrefix(s, "ctrl-")
	s = strings.TrimPrefix(s, "^")
	if len(s) != 1 || s[0] < 'a' || s[0] > 'z' {
		return 0, fmt.Errorf("invalid shortcut %q, want a letter like ctrl-a", name)
	}
	return s[0] & 0x1f, nil
}

func init() {
	attachCmd.Flags().String("shortcut", "ctrl-a", "action menu shortcut key")
	attachCmd.Flags().String("workdir", "", "working directory for the session (default: inherit)")
}
