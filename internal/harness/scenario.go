package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted playthrough of a story.
// It runs against a fresh authority and device store, and asserts on the
// resulting trace, the final session and the device journal.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Story is the path of the story file. Relative paths resolve against
	// the scenario file's directory.
	Story string `yaml:"story"`

	// Trainer and PIN create the profile before the first step.
	Trainer string `yaml:"trainer"`
	PIN     string `yaml:"pin"`

	// Seed fixes the pattern sequence generator. Defaults to [1, 2].
	Seed []uint64 `yaml:"seed,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, session and journal.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, journal
	Assertions []Assertion `yaml:"assertions"`
}

// Step kinds.
const (
	StepLogin   = "login"
	StepNext    = "next"
	StepPrev    = "prev"
	StepAdvance = "advance"
	StepStart   = "start"
	StepSubmit  = "submit"
	StepHit     = "hit"
	StepReplay  = "replay"
	StepWait    = "wait"
)

var stepKinds = map[string]bool{
	StepLogin: true, StepNext: true, StepPrev: true, StepAdvance: true,
	StepStart: true, StepSubmit: true, StepHit: true, StepReplay: true,
	StepWait: true,
}

// Step is one player action.
type Step struct {
	// Do is the step kind.
	Do string `yaml:"do"`

	// PIN overrides the scenario PIN for a login step.
	PIN string `yaml:"pin,omitempty"`

	// Submit inputs. Only the fields the scene's challenge reads are used.
	Code    string            `yaml:"code,omitempty"`
	Lat     *float64          `yaml:"lat,omitempty"`
	Lng     *float64          `yaml:"lng,omitempty"`
	Choice  string            `yaml:"choice,omitempty"`
	Answers map[string]string `yaml:"answers,omitempty"`

	// Symbol is a pattern input for a hit step.
	Symbol string `yaml:"symbol,omitempty"`

	// Times repeats a hit step. Defaults to 1.
	Times int `yaml:"times,omitempty"`

	// For moves the fake clock forward on a wait step, e.g. "3500ms".
	For string `yaml:"for,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the trace event a step produced.
type Expect struct {
	// Outcome is "ok", "timeout" or an error code.
	Outcome string `yaml:"outcome,omitempty"`
	Scene   string `yaml:"scene,omitempty"`
	Act     int    `yaml:"act,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step with the given outcome appears in the trace
	// - "trace_order": steps appear in order
	// - "trace_count": a step appears exactly N times
	// - "final_state": the committed session matches expect
	// - "journal": the device journal holds N entries of a kind and outcome
	Type string `yaml:"type"`

	// Step is the step kind (trace_contains, trace_count).
	Step string `yaml:"step,omitempty"`

	// Outcome filters by outcome (trace_contains, trace_count, journal).
	Outcome string `yaml:"outcome,omitempty"`

	// Steps is the expected step order (trace_order).
	Steps []string `yaml:"steps,omitempty"`

	// Count is the expected number of occurrences (trace_count, journal).
	Count int `yaml:"count,omitempty"`

	// Expect holds current_act, last_scene, ending_choice and flags
	// (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Kind is the journal entry kind (journal).
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertJournal       = "journal"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Story != "" && !filepath.IsAbs(scenario.Story) {
		scenario.Story = filepath.Join(filepath.Dir(path), scenario.Story)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Story == "" {
		return fmt.Errorf("story is required")
	}
	if _, err := os.Stat(s.Story); os.IsNotExist(err) {
		return fmt.Errorf("story file not found: %s", s.Story)
	}
	if s.Trainer == "" || s.PIN == "" {
		return fmt.Errorf("trainer and pin are required")
	}
	if len(s.Seed) != 0 && len(s.Seed) != 2 {
		return fmt.Errorf("seed must have two values, got %d", len(s.Seed))
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step) error {
	if !stepKinds[st.Do] {
		return fmt.Errorf("steps[%d]: unknown step %q", index, st.Do)
	}
	if st.Times < 0 {
		return fmt.Errorf("steps[%d]: times must be non-negative", index)
	}
	if (st.Lat == nil) != (st.Lng == nil) {
		return fmt.Errorf("steps[%d]: lat and lng must be given together", index)
	}
	if st.Do == StepWait {
		d, err := time.ParseDuration(st.For)
		if err != nil || d <= 0 {
			return fmt.Errorf("steps[%d]: wait needs a positive duration in for", index)
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
	case AssertTraceContains:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertJournal:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for journal", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
