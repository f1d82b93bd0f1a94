package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
strict: true
field_policy: allow
drivers:
  - name: primary
    authority: get,query
steps:
  - op: create
    type: widget
    data:
      name: foo
      price: 2
    expect:
      fields:
        name: foo
  - op: query
    type: widget
    where:
      price: 2
    sort: [-price]
    limit: 5
    expect:
      count: 1
assertions:
  - type: event_contains
    event: created.widget
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.True(t, scenario.Strict)
	assert.Equal(t, "allow", scenario.FieldPolicy)
	assert.Equal(t, []DriverSpec{{Name: "primary", Authority: "get,query"}}, scenario.Drivers)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpCreate, scenario.Steps[0].Op)
	assert.Equal(t, "foo", scenario.Steps[0].Data["name"])
	assert.Equal(t, []string{"-price"}, scenario.Steps[1].Sort)
	require.NotNil(t, scenario.Steps[1].Expect.Count)
	assert.Equal(t, 1, *scenario.Steps[1].Expect.Count)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertEventContains, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: d
steps:
  - op: create
    type: widget
    expects:
      error: NOT_FOUND
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: create, type: widget}]",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps: [{op: create, type: widget}]",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d",
			want: "steps list is required",
		},
		{
			name: "missing op",
			yaml: "name: n\ndescription: d\nsteps: [{type: widget}]",
			want: "steps[0]: op is required",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nsteps: [{op: upsert, type: widget}]",
			want: `unknown op "upsert"`,
		},
		{
			name: "get without id",
			yaml: "name: n\ndescription: d\nsteps: [{op: get, type: widget}]",
			want: "type and id are required for get",
		},
		{
			name: "update without id",
			yaml: "name: n\ndescription: d\nsteps: [{op: update, type: widget}]",
			want: "type and id are required for update",
		},
		{
			name: "create without type",
			yaml: "name: n\ndescription: d\nsteps: [{op: create}]",
			want: "type is required for create",
		},
		{
			name: "duplicate driver",
			yaml: "name: n\ndescription: d\ndrivers: [{name: a}, {name: a}]\nsteps: [{op: log}]",
			want: `duplicate name "a"`,
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{op: log}]\nassertions: [{type: trace_order}]",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "event_order without events",
			yaml: "name: n\ndescription: d\nsteps: [{op: log}]\nassertions: [{type: event_order}]",
			want: "events list is required",
		},
		{
			name: "final_state without expect",
			yaml: "name: n\ndescription: d\nsteps: [{op: log}]\nassertions: [{type: final_state, object: widget, id: w1}]",
			want: "expect or absent is required",
		},
		{
			name: "driver_count without driver",
			yaml: "name: n\ndescription: d\nsteps: [{op: log}]\nassertions: [{type: driver_count, object: widget}]",
			want: "driver and object are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
