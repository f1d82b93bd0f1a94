package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/driver/memory"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
	"github.com/roach88/objgate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Events   []string // Emitted event names for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, name := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, name)
		}
	}
	return buf.String()
}

// assertEventContains checks that at least one event has the given name.
func assertEventContains(names []string, assertion Assertion) error {
	for _, name := range names {
		if name == assertion.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("event %s", assertion.Event),
		Actual:   "not emitted",
		Events:   names,
	}
}

// assertEventOrder checks that the events appear in the given order.
// They don't need to be consecutive.
func assertEventOrder(names []string, assertion Assertion) error {
	next := 0
	for _, name := range names {
		if next < len(assertion.Events) && name == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("%s missing after position %d", assertion.Events[next], next),
		Events:   names,
	}
}

// assertEventCount checks the exact number of events with the given name.
func assertEventCount(names []string, assertion Assertion) error {
	count := 0
	for _, name := range names {
		if name == assertion.Event {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Events:   names,
		}
	}
	return nil
}

// assertFinalState reads the object straight from the store, bypassing
// rules, and matches it against the expected fields (subset semantics).
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	obj, err := actx.Store.Get(actx.Ctx, assertion.Object, assertion.ID, driver.Options{IDField: actx.IDField})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read %s %q", assertion.Object, assertion.ID),
			Actual:   fmt.Sprintf("store error: %v", err),
		}
	}

	if assertion.Absent {
		if obj != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %q to be absent", assertion.Object, assertion.ID),
				Actual:   "object found",
			}
		}
		return nil
	}
	if obj == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %q to exist", assertion.Object, assertion.ID),
			Actual:   "object not found",
		}
	}
	if msg := matchFields(obj, assertion.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %q to match %v", assertion.Object, assertion.ID, assertion.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertDriverCount checks how many objects of a type one driver holds.
func assertDriverCount(actx *AssertionContext, assertion Assertion) error {
	d, ok := actx.Drivers[assertion.Driver]
	if !ok {
		return fmt.Errorf("driver_count: unknown driver %q", assertion.Driver)
	}
	if n := d.Len(assertion.Object); n != assertion.Count {
		return &AssertionError{
			Type:     AssertDriverCount,
			Expected: fmt.Sprintf("%d %s objects in %s", assertion.Count, assertion.Object, assertion.Driver),
			Actual:   fmt.Sprintf("%d objects", n),
		}
	}
	return nil
}

// matchFields checks that obj contains every expected field with an equal
// value. Keys may be dotted paths. It returns a description of the first
// mismatch, or "" when everything matches. Extra fields in obj are ignored.
func matchFields(obj ir.Object, expected map[string]any) string {
	if len(expected) == 0 {
		return ""
	}
	want, err := jsonValue(expected)
	if err != nil {
		return err.Error()
	}
	wantMap, _ := want.(map[string]any)
	for _, key := range ir.Object(wantMap).SortedKeys() {
		actual, ok := queryir.Lookup(obj, key)
		if !ok {
			return fmt.Sprintf("field %q not present", key)
		}
		if !ir.Equal(actual, wantMap[key]) {
			return fmt.Sprintf("field %q = %v, want %v", key, actual, wantMap[key])
		}
	}
	return ""
}

// checkExpect compares a step outcome against its expectation and returns
// one message per mismatch.
func checkExpect(ts TraceStep, expect *Expect, opErr error) []string {
	prefix := fmt.Sprintf("step %d (%s %s)", ts.Step, ts.Op, ts.Type)
	if expect == nil {
		expect = &Expect{}
	}

	if expect.Error != "" {
		switch {
		case opErr == nil:
			return []string{fmt.Sprintf("%s: expected error %s, got success", prefix, expect.Error)}
		case ts.Error != expect.Error:
			return []string{fmt.Sprintf("%s: expected error %s, got %s: %v", prefix, expect.Error, ts.Error, opErr)}
		}
		return nil
	}
	if opErr != nil {
		return []string{fmt.Sprintf("%s: unexpected error: %v", prefix, opErr)}
	}

	var errs []string
	if expect.Missing && ts.Result != nil {
		errs = append(errs, fmt.Sprintf("%s: expected no object", prefix))
	}
	if len(expect.Fields) > 0 {
		obj, ok := ts.Result.(ir.Object)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: expected an object result", prefix))
		} else if msg := matchFields(obj, expect.Fields); msg != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", prefix, msg))
		}
	}
	if expect.Count != nil {
		list, ok := ts.Result.([]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: expected a list result", prefix))
		} else if len(list) != *expect.Count {
			errs = append(errs, fmt.Sprintf("%s: expected %d results, got %d", prefix, *expect.Count, len(list)))
		}
	}
	if expect.Deleted != nil {
		if deleted, _ := ts.Result.(bool); deleted != *expect.Deleted {
			errs = append(errs, fmt.Sprintf("%s: expected deleted=%t, got %t", prefix, *expect.Deleted, deleted))
		}
	}
	return errs
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Drivers map[string]*memory.Driver
	IDField string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state and
// driver_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	names := result.EventNames()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventContains:
			err = assertEventContains(names, assertion)
		case AssertEventOrder:
			err = assertEventOrder(names, assertion)
		case AssertEventCount:
			err = assertEventCount(names, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires store context", i)
			} else {
				err = assertFinalState(actx, assertion)
			}
		case AssertDriverCount:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: driver_count requires driver context", i)
			} else {
				err = assertDriverCount(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
