package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project-level configuration file name.
const FileName = "daneel.yaml"

// Load reads and parses a project configuration from the given YAML
// file path, then applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault searches for a configuration starting from projectDir and
// loads the first one found. Search order: <projectDir>/daneel.yaml,
// ~/.daneel/config.yaml.
func LoadDefault(projectDir string) (*Config, error) {
	candidates := []string{filepath.Join(projectDir, FileName)}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".daneel", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, fmt.Errorf("no config found (searched: %v)", candidates)
}

// applyDefaults fills unset defaults with the standard values.
func applyDefaults(cfg *Config) {
	if cfg.Defaults.Timeout == "" {
		cfg.Defaults.Timeout = "5m"
	}
	if cfg.Defaults.MaxAttempts <= 0 {
		cfg.Defaults.MaxAttempts = 3
	}
	if cfg.Defaults.Agent == "" && len(cfg.Agents) == 1 {
		for name := range cfg.Agents {
			cfg.Defaults.Agent = name
		}
	}
	if cfg.Vars == nil {
		cfg.Vars = make(map[string]interface{})
	}
}
