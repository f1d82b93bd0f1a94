package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/objgate/internal/ir"
)

// TraceSnapshot is the golden-file form of a run: the scenario name and
// its step trace, rendered as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	Trace        []TraceStep `json:"trace"`
}

// toCanonicalMap flattens the snapshot into plain maps and slices, the only
// container types ir.MarshalCanonical accepts. Empty fields are dropped.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Trace))
	for i, step := range s.Trace {
		m := map[string]any{
			"step": step.Step,
			"op":   step.Op,
			"type": step.Type,
		}
		if step.ID != "" {
			m["id"] = step.ID
		}
		if step.Error != "" {
			m["error"] = step.Error
		}
		if step.Result != nil {
			m["result"] = step.Result
		}
		if len(step.Events) > 0 {
			m["events"] = step.Events
		}
		steps[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         steps,
	}
}

// MarshalTrace renders the trace of result as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden runs scenario and checks its trace against
// testdata/golden/<name>.golden. A differing trace fails t; an error means
// the scenario could not run.
//
// Refresh golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden checks the trace of an existing result against the golden
// file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
