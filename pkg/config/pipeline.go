package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/pkg/meta"
)

// Pipeline is a YAML-defined sequence of steps.
type Pipeline struct {
	// Name identifies the pipeline in logs.
	Name string `yaml:"name"`

	// Steps run sequentially in file order.
	Steps []StepSpec `yaml:"steps"`
}

// StepSpec is one declared step: a builtin action, its parameters, and
// the capability metadata the engine resolves for it.
type StepSpec struct {
	// Name identifies the step.
	Name string `yaml:"name"`

	// Action names the builtin action to run (e.g. "http.get",
	// "kv.set", "queue.publish", "log").
	Action string `yaml:"action"`

	// Params are action-specific parameters.
	Params map[string]any `yaml:"params"`

	// Meta is the step's capability and policy metadata.
	Meta map[string]any `yaml:"meta"`
}

// BuildMeta decodes and validates the step's metadata.
func (s StepSpec) BuildMeta() (meta.Meta, error) {
	return meta.FromMap(s.Meta)
}

// LoadPipeline reads and validates a pipeline file. Every step's
// metadata is decoded here, so malformed declarations fail before
// anything runs.
func LoadPipeline(path string) (Pipeline, error) {
	var p Pipeline
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read pipeline: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse pipeline: %w", err)
	}
	if len(p.Steps) == 0 {
		return p, fmt.Errorf("pipeline declares no steps")
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Name == "" {
			return p, fmt.Errorf("step %d has no name", i)
		}
		if seen[s.Name] {
			return p, fmt.Errorf("duplicate step name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Action == "" {
			return p, fmt.Errorf("step %q has no action", s.Name)
		}
		if _, err := s.BuildMeta(); err != nil {
			return p, fmt.Errorf("step %q: %w", s.Name, err)
		}
	}
	return p, nil
}
