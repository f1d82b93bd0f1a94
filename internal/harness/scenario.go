package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario configures a fresh engine, runs a sequence of object operations
// with optional per-step expectations, and asserts on the emitted lifecycle
// events and the final stored state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Strict turns on fail-closed rule checking.
	Strict bool `yaml:"strict,omitempty"`

	// FieldPolicy is "strict", "allow" or "inherit". Empty means strict.
	FieldPolicy string `yaml:"field_policy,omitempty"`

	// StrictApply rejects changes whose paths cannot be resolved.
	StrictApply bool `yaml:"strict_apply,omitempty"`

	// Policy is an inline YAML rule policy (see rules.ParsePolicy).
	Policy string `yaml:"policy,omitempty"`

	// Models is inline CUE source describing object types. Types it does not
	// name are still creatable as empty objects.
	Models string `yaml:"models,omitempty"`

	// IDPrefix prefixes generated object ids ("<prefix>-0001"). Defaults to "id".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Drivers lists the data drivers to register, in order. Defaults to a
	// single "primary" driver authoritative for get, query and search.
	Drivers []DriverSpec `yaml:"drivers,omitempty"`

	// Steps are executed in order against the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the event stream and final state.
	// Supported types: event_contains, event_order, event_count,
	// final_state, driver_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DriverSpec registers one in-memory data driver.
type DriverSpec struct {
	Name      string `yaml:"name"`
	Authority string `yaml:"authority"`
}

// Step is one engine operation.
type Step struct {
	// Op is one of create, get, update, delete, query, search, log.
	Op string `yaml:"op"`

	Type string `yaml:"type"`
	ID   string `yaml:"id,omitempty"`

	// Data is the overlay for create and update.
	Data map[string]any `yaml:"data,omitempty"`

	// Changes is an explicit changeset in deep-diff form.
	Changes []any `yaml:"changes,omitempty"`

	// Where is the query for query steps.
	Where map[string]any `yaml:"where,omitempty"`

	// Text is the search text for search steps.
	Text string `yaml:"text,omitempty"`

	View         []string `yaml:"view,omitempty"`
	Sort         []string `yaml:"sort,omitempty"`
	Limit        int      `yaml:"limit,omitempty"`
	AllowMissing bool     `yaml:"allow_missing,omitempty"`

	// User and Roles form the caller identity.
	User  string   `yaml:"user,omitempty"`
	Roles []string `yaml:"roles,omitempty"`

	// Expect, when present, is checked against the step outcome. A step
	// without Expect must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Error is the expected error kind (e.g. "PERMISSION_DENIED").
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Fields is a subset match against the returned object. Keys may be
	// dotted paths.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Count is the expected number of results of a list operation.
	Count *int `yaml:"count,omitempty"`

	// Deleted is the expected result of a delete.
	Deleted *bool `yaml:"deleted,omitempty"`

	// Missing expects a nil object (get with allow_missing).
	Missing bool `yaml:"missing,omitempty"`
}

// Assertion represents a check evaluated after all steps have run.
type Assertion struct {
	// Type is the assertion type.
	Type string `yaml:"type"`

	// Event is the event name for event_contains and event_count.
	Event string `yaml:"event,omitempty"`

	// Events is the ordered list of event names for event_order.
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number for event_count and driver_count.
	Count int `yaml:"count,omitempty"`

	// Object and ID identify the stored object for final_state. Object is
	// also the type counted by driver_count.
	Object string `yaml:"object,omitempty"`
	ID     string `yaml:"id,omitempty"`

	// Driver names the driver inspected by driver_count.
	Driver string `yaml:"driver,omitempty"`

	// Absent expects final_state to find no object.
	Absent bool `yaml:"absent,omitempty"`

	// Expect is a subset match against the stored object for final_state.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants
const (
	AssertEventContains = "event_contains"
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertFinalState    = "final_state"
	AssertDriverCount   = "driver_count"
)

// Step operation constants
const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpQuery  = "query"
	OpSearch = "search"
	OpLog    = "log"
)

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

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Unknown fields are rejected so typos like "expects:" fail loudly.
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

	seen := make(map[string]bool, len(s.Drivers))
	for i, d := range s.Drivers {
		if d.Name == "" {
			return fmt.Errorf("drivers[%d]: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("drivers[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
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

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpCreate, OpQuery, OpSearch:
		if s.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for %s", index, s.Op)
		}
	case OpGet, OpDelete:
		if s.Type == "" || s.ID == "" {
			return fmt.Errorf("steps[%d]: type and id are required for %s", index, s.Op)
		}
	case OpUpdate:
		if s.Type == "" || s.ID == "" {
			return fmt.Errorf("steps[%d]: type and id are required for update", index)
		}
	case OpLog:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertFinalState:
		if a.Object == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: object and id are required for final_state", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertDriverCount:
		if a.Driver == "" || a.Object == "" {
			return fmt.Errorf("assertions[%d]: driver and object are required for driver_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for driver_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
