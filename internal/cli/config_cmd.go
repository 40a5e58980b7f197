package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/olivaw/daneel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap project configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with defaults merged",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := project()
		if err != nil {
			return err
		}
		cfg, err := config.LoadDefault(proj)
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config: %w", err)
		}
		cmd.Print(string(data))
		return nil
	},
}

const starterConfig = `project:
  name: my-project

agents:
  claude:
    command: claude -p {{prompt}}
    structured_flag: --output-format json

defaults:
  timeout: 5m
  max_attempts: 3
  agent: claude

vars: {}
`

const starterPipeline = `pipeline:
  name: example
  steps:
    - agent:
        prompt: "Say hello to {{config.name}} and exit."
`

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter daneel.yaml and pipeline directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := project()
		if err != nil {
			return err
		}

		cfgPath := filepath.Join(proj, config.FileName)
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists", cfgPath)
		}
		if err := os.WriteFile(cfgPath, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		pipelines := filepath.Join(proj, "daneel", "pipelines")
		if err := os.MkdirAll(pipelines, 0o755); err != nil {
			return fmt.Errorf("creating pipeline dir: %w", err)
		}
		examplePath := filepath.Join(pipelines, "example.yaml")
		if _, err := os.Stat(examplePath); os.IsNotExist(err) {
			if err := os.WriteFile(examplePath, []byte(starterPipeline), 0o644); err != nil {
				return fmt.Errorf("writing example pipeline: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Join(proj, "daneel", "actions"), 0o755); err != nil {
			return fmt.Errorf("creating actions dir: %w", err)
		}

		cmd.Printf("Initialized %s and daneel/ directories.\n", config.FileName)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
