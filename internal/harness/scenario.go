package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance run: seed a fresh database, run a flow of
// catalog queries and table writes, then check what happened.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Catalog is the CUE or YAML catalog whose queries the flow runs.
	// Relative paths resolve against the scenario's directory, or the base
	// path given to LoadScenarioWithBasePath.
	Catalog string `yaml:"catalog"`

	// Setup statements run in one transaction before the flow and are not
	// traced.
	Setup []string `yaml:"setup,omitempty"`

	Flow       []FlowStep  `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`

	// SessionPrefix names sessions "<prefix>-1", "<prefix>-2", ...
	// (default "session").
	SessionPrefix string `yaml:"session_prefix,omitempty"`
}

// FlowStep is one step of the flow. Exactly one of Query, Insert, Update
// and Delete is set; the write fields name a table.
type FlowStep struct {
	Query  string `yaml:"query,omitempty"`
	Insert string `yaml:"insert,omitempty"`
	Update string `yaml:"update,omitempty"`
	Delete string `yaml:"delete,omitempty"`

	Record map[string]any `yaml:"record,omitempty"` // inserted values or update assignments
	Where  map[string]any `yaml:"where,omitempty"`  // column equalities restricting update/delete

	// Expect is optional; without it the step only has to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is what a step must produce.
type ExpectClause struct {
	// Count is rows read by a query or affected by a write.
	Count *int `yaml:"count,omitempty"`

	// Rows match the leading rows read, in order, on the columns given.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Error must be a substring of the step's error; success then fails
	// the step.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the trace or the final table state after the flow.
// Which fields apply depends on Type:
//
//	trace_contains  Kind and/or SQL (substring)
//	trace_order     Kinds, as a subsequence of the trace
//	trace_count     Kind and Count, exact
//	final_state     Table, Where equalities and Expect (subset match)
type Assertion struct {
	Type   string         `yaml:"type"`
	Kind   string         `yaml:"kind,omitempty"` // read | insert | update | delete
	SQL    string         `yaml:"sql,omitempty"`
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Kinds  []string       `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads a scenario file, resolving its catalog against the
// file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving a relative
// catalog path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) && basePath != "" {
		scenario.Catalog = filepath.Join(basePath, scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	for _, f := range []struct{ name, value string }{
		{"name", s.Name},
		{"description", s.Description},
		{"catalog", s.Catalog},
	} {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog file not found: %s", s.Catalog)
	}
	if len(s.Flow) == 0 {
		return errors.New("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
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

// validateStep checks that a flow step names exactly one action and
// carries the fields that action needs.
func validateStep(index int, step *FlowStep) error {
	set := 0
	for _, target := range []string{step.Query, step.Insert, step.Update, step.Delete} {
		if target != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("flow[%d]: exactly one of query, insert, update or delete is required", index)
	}

	switch {
	case step.Insert != "", step.Update != "":
		if len(step.Record) == 0 {
			return fmt.Errorf("flow[%d]: record is required for insert and update", index)
		}
	case step.Query != "":
		if step.Record != nil || step.Where != nil {
			return fmt.Errorf("flow[%d]: record and where are not valid on a query step", index)
		}
	}

	if step.Insert != "" && step.Where != nil {
		return fmt.Errorf("flow[%d]: where is not valid on an insert step", index)
	}

	if step.Expect != nil && step.Expect.Count != nil && *step.Expect.Count < 0 {
		return fmt.Errorf("flow[%d].expect: count must be non-negative", index)
	}

	return nil
}

// validKinds lists the statement kinds trace assertions accept.
var validKinds = map[string]bool{"read": true, "insert": true, "update": true, "delete": true}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" && a.SQL == "" {
			return fmt.Errorf("assertions[%d]: kind or sql is required for trace_contains", index)
		}
		if a.Kind != "" && !validKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
		for _, k := range a.Kinds {
			if !validKinds[k] {
				return fmt.Errorf("assertions[%d]: unknown kind %q", index, k)
			}
		}
	case AssertTraceCount:
		if !validKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
