package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lockstep/internal/config"
	"github.com/roach88/lockstep/internal/ir"
)

// Scenario runs one program over a list of seeds and states what the runs
// must do.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the registered program to run.
	Program string `yaml:"program"`

	// Params are passed to the program.
	Params Params `yaml:"params,omitempty"`

	// Config overrides the default configuration with the keys of a
	// configuration file. Its seed is replaced by each of Seeds.
	Config map[string]any `yaml:"config,omitempty"`

	// Seeds lists the seeds to run, one run each. Zero is not allowed:
	// it would pick a seed from the wall clock.
	Seeds []uint64 `yaml:"seeds"`

	// Assertions are evaluated over all runs.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion states a property of the runs of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Reason is the final reason name (reason, finds, never).
	Reason string `yaml:"reason,omitempty"`

	// Code is the expected exit code (exit_code).
	Code *int `yaml:"code,omitempty"`

	// Count bounds the number of decisions (max_decisions).
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	// AssertExitCode: every run exits with Code.
	AssertExitCode = "exit_code"
	// AssertReason: every run ends with Reason.
	AssertReason = "reason"
	// AssertFinds: at least one run ends with Reason.
	AssertFinds = "finds"
	// AssertNever: no run ends with Reason.
	AssertNever = "never"
	// AssertReplays: replaying every recording reproduces it.
	AssertReplays = "replays"
	// AssertMaxDecisions: no run records more than Count decisions.
	AssertMaxDecisions = "max_decisions"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file of dir, sorted by file
// name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*Scenario, 0, len(names))
	seen := map[string]string{}
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", s.Name, prev, name)
		}
		seen[s.Name] = name
		out = append(out, s)
	}
	return out, nil
}

// BuildConfig returns the configuration of the scenario without a seed.
func (s *Scenario) BuildConfig() (config.Config, error) {
	if len(s.Config) == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return config.Config{}, fmt.Errorf("scenario config: %w", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return config.Config{}, fmt.Errorf("scenario config: %w", err)
	}
	return cfg, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := Lookup(s.Program); err != nil {
		return err
	}
	if len(s.Seeds) == 0 {
		return fmt.Errorf("seeds list is required and must be non-empty")
	}
	for i, seed := range s.Seeds {
		if seed == 0 {
			return fmt.Errorf("seeds[%d]: seed must be non-zero", i)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.BuildConfig(); err != nil {
		return err
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExitCode:
		if a.Code == nil {
			return fmt.Errorf("assertions[%d]: code is required for exit_code", index)
		}
	case AssertReason, AssertFinds, AssertNever:
		if a.Reason == "" {
			return fmt.Errorf("assertions[%d]: reason is required for %s", index, a.Type)
		}
		if _, err := ir.ParseReason(a.Reason); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertReplays:
	case AssertMaxDecisions:
		if a.Count <= 0 {
			return fmt.Errorf("assertions[%d]: count must be positive for max_decisions", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// replays reports whether any assertion needs the recordings replayed.
func (s *Scenario) replays() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertReplays {
			return true
		}
	}
	return false
}
