package harness

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines one end-to-end compiler scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Circuit is the circuit source file.
	Circuit string `yaml:"circuit"`

	// Pulses is the CUE gate definition file.
	Pulses string `yaml:"pulses"`

	// Channels is the channel count of the target system.
	Channels int `yaml:"channels"`

	// GlobalDelay in seconds; unset disables delays.
	GlobalDelay *float64 `yaml:"global_delay,omitempty"`

	// Overrides replace let constants of the circuit.
	Overrides map[string]float64 `yaml:"overrides,omitempty"`

	// Assertions validate the compiled program and its replay.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of a scenario result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Channel is the global channel (unique_gates, sequence, record).
	Channel int `yaml:"channel,omitempty"`

	// Count is the expected number (unique_gates, word_count).
	Count int `yaml:"count,omitempty"`

	// IDs is the expected gate id sequence (sequence).
	IDs []int `yaml:"ids,omitempty"`

	// Block is programming, sequence or stream (word_count).
	Block string `yaml:"block,omitempty"`

	// Board selects the board (word_count); ignored for stream.
	Board int `yaml:"board,omitempty"`

	// Mod is the modulation type name (record).
	Mod string `yaml:"mod,omitempty"`

	// Segments and Cycles are the expected pulse count and total length of
	// a decoded record (record).
	Segments int   `yaml:"segments,omitempty"`
	Cycles   int64 `yaml:"cycles,omitempty"`

	// Code is the expected compile error code (compile_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertUniqueGates  = "unique_gates"
	AssertSequence     = "sequence"
	AssertWordCount    = "word_count"
	AssertRecord       = "record"
	AssertCompileError = "compile_error"
)

// Word count blocks.
const (
	BlockProgramming = "programming"
	BlockSequence    = "sequence"
	BlockStream      = "stream"
)

// LoadScenario reads and parses a scenario YAML file. Circuit and pulse
// paths are resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&scenario.Circuit, &scenario.Pulses} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.Errorf("name is required")
	}
	if s.Description == "" {
		return errors.Errorf("description is required")
	}
	if s.Channels < 1 {
		return errors.Errorf("channels must be positive")
	}
	if len(s.Assertions) == 0 {
		return errors.Errorf("assertions list is required and must be non-empty")
	}

	for field, p := range map[string]string{"circuit": s.Circuit, "pulses": s.Pulses} {
		if p == "" {
			return errors.Errorf("%s is required", field)
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return errors.Errorf("%s file not found: %s", field, p)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return errors.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertUniqueGates:
		if a.Count < 0 {
			return errors.Errorf("assertions[%d]: count must be non-negative for unique_gates", index)
		}
	case AssertSequence:
		if a.IDs == nil {
			return errors.Errorf("assertions[%d]: ids list is required for sequence", index)
		}
	case AssertWordCount:
		switch a.Block {
		case BlockProgramming, BlockSequence, BlockStream:
		default:
			return errors.Errorf("assertions[%d]: block must be programming, sequence or stream", index)
		}
		if a.Count < 0 {
			return errors.Errorf("assertions[%d]: count must be non-negative for word_count", index)
		}
	case AssertRecord:
		if a.Mod == "" {
			return errors.Errorf("assertions[%d]: mod is required for record", index)
		}
	case AssertCompileError:
		if a.Code == "" {
			return errors.Errorf("assertions[%d]: code is required for compile_error", index)
		}
	default:
		return errors.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
