package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/actionstore/internal/config"
	"github.com/roach88/actionstore/internal/txn"
)

// Scenario is one executable store scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Comparison is the default comparison for the declared stores.
	Comparison config.ComparisonConfig `yaml:"comparison,omitempty"`

	Stores   []config.StoreDecl    `yaml:"stores"`
	Computed []config.ComputedDecl `yaml:"computed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is a single scenario step. Exactly one field is set.
type Step struct {
	Set        *SetStep  `yaml:"set,omitempty"`
	Emit       *EmitStep `yaml:"emit,omitempty"`
	Unregister string    `yaml:"unregister,omitempty"`
	Tx         *TxStep   `yaml:"tx,omitempty"`
}

// SetStep writes Value to Store.
type SetStep struct {
	Store string `yaml:"store"`
	Value any    `yaml:"value"`
}

// EmitStep emits Event with Data.
type EmitStep struct {
	Event string `yaml:"event"`
	Data  any    `yaml:"data,omitempty"`
}

// TxStep runs Steps inside a coordinated operation over Stores.
type TxStep struct {
	// Mode is "auto" (Coordinator.Run) or "explicit" (Coordinator.RunTx).
	Mode string `yaml:"mode"`

	Stores []string `yaml:"stores"`

	// Steps may only contain set and emit steps.
	Steps []Step `yaml:"steps,omitempty"`

	// Abort calls Controller.Abort with this reason after Steps.
	Abort string `yaml:"abort,omitempty"`

	// Fail makes the handler return an error with this message after Steps.
	Fail string `yaml:"fail,omitempty"`

	// SkipCommit leaves an explicit transaction open when the handler
	// returns.
	SkipCommit bool `yaml:"skip_commit,omitempty"`

	// Expect is the expected error code, or empty for success.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of store_equals, notify_count, event_count.
	Type string `yaml:"type"`

	// Store is the store name (store_equals, notify_count).
	Store string `yaml:"store,omitempty"`

	// Event is the event name (event_count).
	Event string `yaml:"event,omitempty"`

	// Equals is the expected value (store_equals), compared deeply.
	Equals any `yaml:"equals,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStoreEquals = "store_equals"
	AssertNotifyCount = "notify_count"
	AssertEventCount  = "event_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// seed returns the scenario's store declarations as a config.
func (s *Scenario) seed() *config.Config {
	return &config.Config{
		Comparison: s.Comparison,
		Stores:     s.Stores,
		Computed:   s.Computed,
	}
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if err := config.Validate(s.seed()); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), &step, false); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(path string, step *Step, nested bool) error {
	set := 0
	if step.Set != nil {
		set++
		if step.Set.Store == "" {
			return fmt.Errorf("%s: set.store is required", path)
		}
	}
	if step.Emit != nil {
		set++
		if step.Emit.Event == "" {
			return fmt.Errorf("%s: emit.event is required", path)
		}
	}
	if step.Unregister != "" {
		set++
		if nested {
			return fmt.Errorf("%s: unregister is not allowed inside tx", path)
		}
	}
	if step.Tx != nil {
		set++
		if nested {
			return fmt.Errorf("%s: tx cannot be nested", path)
		}
		if err := validateTx(path+".tx", step.Tx); err != nil {
			return err
		}
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one of set, emit, unregister, tx is required", path)
	}
	return nil
}

func validateTx(path string, tx *TxStep) error {
	switch txn.Mode(tx.Mode) {
	case txn.ModeAuto:
		if tx.SkipCommit {
			return fmt.Errorf("%s: skip_commit only applies to explicit mode", path)
		}
	case txn.ModeExplicit:
	default:
		return fmt.Errorf("%s: mode must be %q or %q, got %q", path, txn.ModeAuto, txn.ModeExplicit, tx.Mode)
	}
	if len(tx.Stores) == 0 {
		return fmt.Errorf("%s: stores list is required", path)
	}
	for i, inner := range tx.Steps {
		if err := validateStep(fmt.Sprintf("%s.steps[%d]", path, i), &inner, true); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertStoreEquals, AssertNotifyCount:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for %s", index, a.Type)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
