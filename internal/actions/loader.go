package actions

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/olivaw/daneel/internal/supervise"
)

// EnvDir names the environment variable that prepends an extra
// directory to the action search path.
const EnvDir = "DANEEL_ACTIONS"

type actionFile struct {
	Action struct {
		Name  string     `yaml:"name"`
		Steps []stepSpec `yaml:"steps"`
	} `yaml:"action"`
}

type stepSpec struct {
	Send    *string `yaml:"send"`
	WaitFor *string `yaml:"wait_for"`
	Timeout string  `yaml:"timeout"`
}

// LoadFile parses one action definition.
func LoadFile(path string) (*ScriptedAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading action file: %w", err)
	}

	var file actionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	spec := file.Action
	if spec.Name == "" {
		return nil, fmt.Errorf("%s: action has no name", filepath.Base(path))
	}
	if len(spec.Steps) == 0 {
		return nil, fmt.Errorf("%s: action %q has no steps", filepath.Base(path), spec.Name)
	}

	steps := make([]Step, 0, len(spec.Steps))
	for i, raw := range spec.Steps {
		step, err := raw.resolve()
		if err != nil {
			return nil, fmt.Errorf("%s: action %q step %d: %w", filepath.Base(path), spec.Name, i+1, err)
		}
		steps = append(steps, step)
	}
	return &ScriptedAction{name: spec.Name, steps: steps}, nil
}

func (s stepSpec) resolve() (Step, error) {
	if (s.Send == nil) == (s.WaitFor == nil) {
		return Step{}, fmt.Errorf("exactly one of send or wait_for is required")
	}
	step := Step{Send: s.Send, WaitFor: s.WaitFor}
	if s.Timeout != "" {
		if s.WaitFor == nil {
			return Step{}, fmt.Errorf("timeout only applies to wait_for")
		}
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return Step{}, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
		}
		step.Timeout = d
	}
	return step, nil
}

// LoadDir loads every .yaml/.yml action file in dir, sorted by file
// name. A missing directory yields no actions and no error.
func LoadDir(dir string) ([]*ScriptedAction, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading actions dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	actions := make([]*ScriptedAction, 0, len(names))
	for _, name := range names {
		action, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// Discover collects actions from the standard search path: the
// DANEEL_ACTIONS directory if set, then <projectDir>/daneel/actions,
// then the git repository root's daneel/actions if that differs from
// projectDir. The first definition of a name wins.
func Discover(projectDir string) ([]supervise.Action, error) {
	var dirs []string
	if env := os.Getenv(EnvDir); env != "" {
		dirs = append(dirs, env)
	}
	dirs = append(dirs, filepath.Join(projectDir, "daneel", "actions"))
	if root := gitRoot(projectDir); root != "" && root != projectDir {
		dirs = append(dirs, filepath.Join(root, "daneel", "actions"))
	}

	seen := make(map[string]bool)
	var out []supervise.Action
	for _, dir := range dirs {
		loaded, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, action := range loaded {
			if seen[action.Name()] {
				continue
			}
			seen[action.Name()] = true
			out = append(out, action)
		}
	}
	return out, nil
}

func gitRoot(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
