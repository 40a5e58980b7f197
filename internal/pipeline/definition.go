package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is a loaded pipeline: its ordered steps plus the optional
// success and fail continuation lists. Immutable during a run.
type Definition struct {
	Name    string       `yaml:"name"`
	Steps   []ActionSpec `yaml:"steps"`
	Success []ActionSpec `yaml:"success"`
	Fail    []ActionSpec `yaml:"fail"`
}

type definitionFile struct {
	Pipeline Definition `yaml:"pipeline"`
}

// DirName is the per-project directory holding daneel definitions.
const DirName = "daneel"

// LoadDefinition reads and validates a pipeline definition from a YAML
// file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}

	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing pipeline YAML: %w", err)
	}
	def := &file.Pipeline

	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", def.Name, err)
	}
	return def, nil
}

// Resolve maps a pipeline identifier to a definition. An identifier
// containing a path separator or .yaml suffix is treated as a literal
// path; otherwise it names a file under <projectDir>/daneel/pipelines/.
func Resolve(projectDir string, id string) (*Definition, error) {
	if strings.ContainsRune(id, os.PathSeparator) || strings.HasSuffix(id, ".yaml") || strings.HasSuffix(id, ".yml") {
		return LoadDefinition(id)
	}
	path := filepath.Join(projectDir, DirName, "pipelines", id+".yaml")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("pipeline %q not found at %s", id, path)
	}
	return LoadDefinition(path)
}

// Validate checks the definition's structural invariants.
func (d *Definition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}
	for i := range d.Steps {
		if err := d.Steps[i].validate(i); err != nil {
			return err
		}
	}
	for i := range d.Success {
		if err := d.Success[i].validate(i); err != nil {
			return fmt.Errorf("success continuation: %w", err)
		}
	}
	for i := range d.Fail {
		if err := d.Fail[i].validate(i); err != nil {
			return fmt.Errorf("fail continuation: %w", err)
		}
	}
	return nil
}
