package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/driver/memory"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/store"
)

func resultWithEvents(names ...string) *Result {
	r := NewResult()
	for _, n := range names {
		r.Events = append(r.Events, ir.Event{Name: n, Type: "widget"})
	}
	return r
}

func TestEventAssertions(t *testing.T) {
	result := resultWithEvents("created", "created.widget", "updated", "updated.widget", "updated.widget.w1")

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{name: "contains", assertion: Assertion{Type: AssertEventContains, Event: "updated.widget.w1"}},
		{name: "contains missing", assertion: Assertion{Type: AssertEventContains, Event: "created.gadget"}, wantErr: "not emitted"},
		{name: "order", assertion: Assertion{Type: AssertEventOrder, Events: []string{"created", "updated.widget"}}},
		{name: "order reversed", assertion: Assertion{Type: AssertEventOrder, Events: []string{"updated", "created"}}, wantErr: "created missing after position 1"},
		{name: "count", assertion: Assertion{Type: AssertEventCount, Event: "updated", Count: 1}},
		{name: "count zero", assertion: Assertion{Type: AssertEventCount, Event: "deleted", Count: 0}},
		{name: "count wrong", assertion: Assertion{Type: AssertEventCount, Event: "created", Count: 2}, wantErr: "1 occurrences"},
		{name: "unknown", assertion: Assertion{Type: "trace_order"}, wantErr: "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(result, []Assertion{tt.assertion}, nil)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertionError_ListsEvents(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEventCount,
		Expected: "2 occurrences of created",
		Actual:   "1 occurrences",
		Events:   []string{"created", "created.widget"},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: event_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of created")
	assert.Contains(t, msg, "[2] created.widget")
}

func TestStateAssertions(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	primary, replica := memory.New(), memory.New()
	require.NoError(t, st.AddDriver("primary", primary, "get"))
	require.NoError(t, st.AddDriver("replica", replica, ""))
	require.NoError(t, primary.Put(ctx, "widget", ir.Object{"id": "w1", "name": "a", "dims": map[string]any{"h": 2.0}}, driver.Options{}))

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Drivers: map[string]*memory.Driver{"primary": primary, "replica": replica},
		IDField: "id",
	}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{name: "match", assertion: Assertion{Type: AssertFinalState, Object: "widget", ID: "w1", Expect: map[string]any{"name": "a", "dims.h": 2}}},
		{name: "mismatch", assertion: Assertion{Type: AssertFinalState, Object: "widget", ID: "w1", Expect: map[string]any{"name": "b"}}, wantErr: `field "name" = a, want b`},
		{name: "missing field", assertion: Assertion{Type: AssertFinalState, Object: "widget", ID: "w1", Expect: map[string]any{"price": 1}}, wantErr: `field "price" not present`},
		{name: "missing object", assertion: Assertion{Type: AssertFinalState, Object: "widget", ID: "w2", Expect: map[string]any{"name": "a"}}, wantErr: "object not found"},
		{name: "absent", assertion: Assertion{Type: AssertFinalState, Object: "widget", ID: "w2", Absent: true}},
		{name: "not absent", assertion: Assertion{Type: AssertFinalState, Object: "widget", ID: "w1", Absent: true}, wantErr: "object found"},
		{name: "driver count", assertion: Assertion{Type: AssertDriverCount, Driver: "primary", Object: "widget", Count: 1}},
		{name: "driver count wrong", assertion: Assertion{Type: AssertDriverCount, Driver: "replica", Object: "widget", Count: 1}, wantErr: "0 objects"},
		{name: "unknown driver", assertion: Assertion{Type: AssertDriverCount, Driver: "cache", Object: "widget"}, wantErr: `unknown driver "cache"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(NewResult(), []Assertion{tt.assertion}, actx)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestStateAssertions_RequireContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Object: "widget", ID: "w1", Absent: true},
		{Type: AssertDriverCount, Driver: "primary", Object: "widget"},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires store context")
	assert.Contains(t, errs[1], "requires driver context")
}

func TestCheckExpect(t *testing.T) {
	obj := ir.Object{"id": "w1", "name": "a"}

	assert.Empty(t, checkExpect(TraceStep{Step: 1, Op: OpGet, Type: "widget", Result: obj}, nil, nil))
	assert.Empty(t, checkExpect(TraceStep{Step: 1, Op: OpGet, Type: "widget"}, &Expect{Missing: true}, nil))

	errs := checkExpect(TraceStep{Step: 1, Op: OpGet, Type: "widget", Result: obj}, &Expect{Missing: true}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "expected no object")

	errs = checkExpect(TraceStep{Step: 2, Op: OpQuery, Type: "widget", Result: obj}, &Expect{Count: intPtr(1)}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "expected a list result")

	errs = checkExpect(TraceStep{Step: 3, Op: OpQuery, Type: "widget", Result: []any{}}, &Expect{Fields: map[string]any{"name": "a"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "expected an object result")
}
