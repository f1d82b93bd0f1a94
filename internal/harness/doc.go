// Package harness provides a conformance testing framework for the objgate
// engine.
//
// A scenario is a YAML document that configures a fresh engine (strict mode,
// field policy, an inline rule policy, inline CUE models and a set of
// in-memory data drivers) and then runs a list of object operations:
//
//	name: field_rule
//	description: price writes are denied
//	policy: |
//	  rules:
//	    - {type: widget, action: write, field: price, effect: deny}
//	steps:
//	  - op: create
//	    type: widget
//	    id: w1
//	    data: {name: a}
//	  - op: update
//	    type: widget
//	    id: w1
//	    data: {price: 10}
//	    expect: {error: PERMISSION_DENIED}
//
// Every run uses a frozen clock and sequential ids, so the recorded trace of
// step outcomes and lifecycle events is byte-for-byte reproducible. Traces are
// rendered as canonical JSON and compared with golden files under
// testdata/golden.
//
// Step expectations and the assertions listed after the steps are checked
// against the real engine: results come from the drivers, rules and models
// the scenario configures.
package harness
