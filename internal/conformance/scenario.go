package conformance

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpCreate     = "create"
	OpCreateMany = "create_many"
	OpFindByID   = "find_by_id"
	OpFindMany   = "find_many"
)

// Error kinds recorded in traces and expected by scenarios.
const (
	ErrValidation = "validation"
	ErrNotFound   = "not_found"
	ErrOther      = "error"
)

// Scenario is a named sequence of engine calls.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Steps []Step `yaml:"steps"`
}

// Step is one engine call. Which input fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Action is the input of create, as a plain document.
	Action map[string]any `yaml:"action,omitempty"`

	// Actions is the input of create_many.
	Actions []map[string]any `yaml:"actions,omitempty"`

	// ID is the input of find_by_id. An empty id is a valid input.
	ID string `yaml:"id,omitempty"`

	// Options and Filters are the inputs of find_many. Absent means nil.
	Options map[string]any `yaml:"options,omitempty"`
	Filters map[string]any `yaml:"filters,omitempty"`

	// Expect, when set, is checked against the step outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step outcome. Unset fields are not checked.
type Expect struct {
	// Error is the expected error kind. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Fields are the expected violation paths, in order, for validation
	// errors.
	Fields []string `yaml:"fields,omitempty"`

	// IDs are the ids of the returned actions, in order. An explicit empty
	// list expects no results.
	IDs []string `yaml:"ids"`

	// Match is a subset of the first returned action's document.
	Match map[string]any `yaml:"match,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml scenario in dir, ordered by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	out := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), sc.Name, prev)
		}
		seen[sc.Name] = filepath.Base(p)
		out = append(out, sc)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpCreate:
			if step.Action == nil {
				return fmt.Errorf("steps[%d]: action is required for create", i)
			}
		case OpCreateMany:
			if step.Actions == nil {
				return fmt.Errorf("steps[%d]: actions is required for create_many", i)
			}
		case OpFindByID, OpFindMany:
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}

		if e := step.Expect; e != nil {
			switch e.Error {
			case "", ErrValidation, ErrNotFound, ErrOther:
			default:
				return fmt.Errorf("steps[%d].expect: unknown error kind %q", i, e.Error)
			}
			if len(e.Fields) > 0 && e.Error != ErrValidation {
				return fmt.Errorf("steps[%d].expect: fields require error: validation", i)
			}
		}
	}
	return nil
}
