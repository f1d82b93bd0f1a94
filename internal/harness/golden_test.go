package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/ir"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with the golden file of the same name.
func TestScenarios(t *testing.T) {
	tests := []struct {
		name   string
		golden bool
	}{
		{name: "create_widget", golden: true},
		{name: "update_missing", golden: true},
		{name: "field_rule", golden: true},
		{name: "delete_fanout", golden: true},
		{name: "strict_roles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + tt.name + ".yaml")
			require.NoError(t, err)
			assert.Equal(t, tt.name, scenario.Name)

			var result *Result
			if tt.golden {
				result, err = RunWithGolden(t, scenario)
			} else {
				result, err = Run(scenario)
			}
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps))
		})
	}
}

func TestMarshalTrace(t *testing.T) {
	result := NewResult()
	result.AddStep(TraceStep{Step: 1, Op: OpDelete, Type: "widget", ID: "w1", Result: false})
	result.AddStep(TraceStep{Step: 2, Op: OpGet, Type: "widget", ID: "w1", Error: "NOT_FOUND"})
	result.AddStep(TraceStep{
		Step:   3,
		Op:     OpCreate,
		Type:   "widget",
		ID:     "w2",
		Result: ir.Object{"name": "<b>", "id": "w2"},
		Events: []string{"created", "created.widget"},
	})

	data, err := MarshalTrace("sample", result)
	require.NoError(t, err)

	want := `{"scenario_name":"sample","trace":[` +
		`{"id":"w1","op":"delete","result":false,"step":1,"type":"widget"},` +
		`{"error":"NOT_FOUND","id":"w1","op":"get","step":2,"type":"widget"},` +
		`{"events":["created","created.widget"],"id":"w2","op":"create","result":{"id":"w2","name":"<b>"},"step":3,"type":"widget"}` +
		`]}`
	assert.Equal(t, want, string(data))
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/field_rule.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))
}
