package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/ir"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Steps: []Step{
			{Op: OpCreate, Type: "widget", Data: map[string]any{"name": "foo"}},
		},
		Assertions: []Assertion{
			{Type: AssertEventContains, Event: "created.widget"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	step := result.Trace[0]
	assert.Equal(t, 1, step.Step)
	assert.Equal(t, "id-0001", step.ID)
	assert.Empty(t, step.Error)
	assert.Equal(t, []string{"created", "created.widget"}, step.Events)

	obj, ok := step.Result.(ir.Object)
	require.True(t, ok)
	assert.Equal(t, "foo", obj["name"])
	assert.Equal(t, "2026-01-01T00:00:00Z", obj["createdAt"])

	assert.Equal(t, []string{"created", "created.widget"}, result.EventNames())
}

func TestRun_IDPrefix(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "prefix",
		Description: "generated ids use the prefix",
		IDPrefix:    "w",
		Steps:       []Step{{Op: OpCreate, Type: "widget"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "w-0001", result.Trace[0].ID)
}

func TestRun_ExplicitChanges(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "changes",
		Description: "explicit changesets are applied",
		Steps: []Step{
			{Op: OpCreate, Type: "widget", ID: "w1", Data: map[string]any{"tags": []any{"a"}}},
			{
				Op:   OpUpdate,
				Type: "widget",
				ID:   "w1",
				Changes: []any{
					map[string]any{"kind": "N", "path": []any{"name"}, "rhs": "set"},
					map[string]any{"kind": "A", "path": []any{"tags"}, "index": 1, "item": map[string]any{"kind": "N", "rhs": "b"}},
				},
				Expect: &Expect{Fields: map[string]any{"name": "set", "tags.1": "b"}},
			},
			{
				Op:      OpUpdate,
				Type:    "widget",
				ID:      "w1",
				Changes: []any{map[string]any{"kind": "Z", "path": []any{"name"}}},
				Expect:  &Expect{Error: "INVALID_INPUT"},
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "INVALID_INPUT", result.Trace[2].Error)
}

func TestRun_QueryAndSearch(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "query",
		Description: "query and search go to the authoritative driver",
		Steps: []Step{
			{Op: OpCreate, Type: "widget", ID: "a", Data: map[string]any{"name": "red box", "price": 3}},
			{Op: OpCreate, Type: "widget", ID: "b", Data: map[string]any{"name": "blue box", "price": 1}},
			{Op: OpCreate, Type: "widget", ID: "c", Data: map[string]any{"name": "red cup", "price": 2}},
			{
				Op:     OpQuery,
				Type:   "widget",
				Where:  map[string]any{"price": map[string]any{"$gte": 2}},
				Sort:   []string{"-price"},
				Expect: &Expect{Count: intPtr(2)},
			},
			{Op: OpQuery, Type: "widget", Limit: 1, Sort: []string{"price"}, View: []string{"name"}},
			{Op: OpSearch, Type: "widget", Text: "red", Expect: &Expect{Count: intPtr(2)}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	sorted := result.Trace[3].Result.([]any)
	assert.Equal(t, "a", sorted[0].(ir.Object)["id"])
	assert.Equal(t, "c", sorted[1].(ir.Object)["id"])

	limited := result.Trace[4].Result.([]any)
	require.Len(t, limited, 1)
	assert.Equal(t, ir.Object{"id": "b", "name": "blue box"}, limited[0])
}

func TestRun_ExpectationMismatches(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "mismatch",
		Description: "mismatched expectations are reported",
		Steps: []Step{
			{Op: OpCreate, Type: "widget", ID: "w1", Data: map[string]any{"name": "foo"}, Expect: &Expect{Fields: map[string]any{"name": "bar"}}},
			{Op: OpGet, Type: "widget", ID: "missing"},
			{Op: OpGet, Type: "widget", ID: "w1", Expect: &Expect{Error: "NOT_FOUND"}},
			{Op: OpGet, Type: "widget", ID: "gone", Expect: &Expect{Error: "PERMISSION_DENIED"}},
			{Op: OpDelete, Type: "widget", ID: "w1", Expect: &Expect{Deleted: boolPtr(false)}},
			{Op: OpLog, Type: "widget", Expect: &Expect{Count: intPtr(5)}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], `step 1 (create widget): field "name" = foo, want bar`)
	assert.Contains(t, result.Errors[1], "step 2 (get widget): unexpected error")
	assert.Contains(t, result.Errors[2], "expected error NOT_FOUND, got success")
	assert.Contains(t, result.Errors[3], "expected error PERMISSION_DENIED, got NOT_FOUND")
	assert.Contains(t, result.Errors[4], "expected deleted=false, got true")
	assert.Contains(t, result.Errors[5], "expected 5 results, got 2")

	// The trace is complete even when expectations fail.
	assert.Len(t, result.Trace, 6)
	assert.Equal(t, "NOT_FOUND", result.Trace[1].Error)
}

func TestRun_ModelsAndPolicy(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "models",
		Description: "models provide defaults and validation",
		Models:      "gadget: {\n\tlabel: string\n\tsize: int | *3\n}\n",
		Policy:      "rules:\n  - {type: gadget, action: write, field: size, effect: allow, roles: [admin]}\n",
		Steps: []Step{
			{Op: OpCreate, Type: "gadget", ID: "g1", Data: map[string]any{"label": "x"}, Expect: &Expect{Fields: map[string]any{"size": 3}}},
			{Op: OpCreate, Type: "gadget", ID: "g2", Data: map[string]any{"label": 7}, Expect: &Expect{Error: "INVALID_INPUT"}},
			{Op: OpUpdate, Type: "gadget", ID: "g1", Data: map[string]any{"size": 4}, Expect: &Expect{Error: "PERMISSION_DENIED"}},
			{Op: OpUpdate, Type: "gadget", ID: "g1", Data: map[string]any{"size": 4}, Roles: []string{"admin"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Object: "gadget", ID: "g1", Expect: map[string]any{"size": 4, "label": "x"}},
			{Type: AssertFinalState, Object: "gadget", ID: "g2", Absent: true},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
		want     string
	}{
		{
			name:     "bad field policy",
			scenario: Scenario{FieldPolicy: "sometimes"},
			want:     "unknown field policy",
		},
		{
			name:     "bad policy",
			scenario: Scenario{Policy: "rules:\n  - {type: widget, action: fly, effect: allow}\n"},
			want:     "unknown action",
		},
		{
			name:     "bad models",
			scenario: Scenario{Models: "widget: {"},
			want:     "compile",
		},
		{
			name:     "authority conflict",
			scenario: Scenario{Drivers: []DriverSpec{{Name: "a", Authority: "get"}, {Name: "b", Authority: "get"}}},
			want:     "already has authority",
		},
		{
			name:     "unknown op",
			scenario: Scenario{Steps: []Step{{Op: "fly", Type: "widget"}}},
			want:     `unknown op "fly"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.scenario.Name = "broken"
			_, err := Run(&tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/delete_fanout.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
