package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/arel/internal/session"
)

// TraceSnapshot captures what a scenario execution observed: every
// statement run and what each flow step returned.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Trace        []session.Entry `json:"trace"`
	Steps        []StepResult    `json:"steps"`
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Map keys are sorted by encoding/json, so the output is deterministic.
// SQL operators are left unescaped to keep golden files readable.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs scenario and checks its snapshot against
// testdata/golden/<name>.golden, failing t on a mismatch. Regenerate with
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden checks an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := (&TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Steps:        result.Steps,
	}).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
