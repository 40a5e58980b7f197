package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var projectDir string

var rootCmd = &cobra.Command{
	Use:   "daneel",
	Short: "daneel — an execution engine for AI coding agents",
	Long: `daneel runs declarative YAML pipelines of agent prompts and shell
validations, with per-step timeouts, retries, and repair prompts, and
supervises interactive agent sessions with scripted actions.

Pipelines live in <project>/daneel/pipelines/, scripted actions in
<project>/daneel/actions/. Run artifacts are stored under ~/.daneel/
(SQLite for events, JSON for step outputs).`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// project returns the absolute project directory from --project.
func project() (string, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "project directory")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
