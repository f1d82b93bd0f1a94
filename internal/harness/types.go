package harness

import "github.com/roach88/objgate/internal/ir"

// TraceStep records the outcome of one scenario step.
type TraceStep struct {
	Step int    `json:"step"`
	Op   string `json:"op"`
	Type string `json:"type"`

	// ID is the step's object id; for create it is the id actually assigned.
	ID string `json:"id,omitempty"`

	// Error is the error kind, empty on success.
	Error string `json:"error,omitempty"`

	// Result is the canonical-ready outcome: an ir.Object, a []any of
	// objects, a bool for delete, or nil.
	Result any `json:"result,omitempty"`

	// Events are the lifecycle event names emitted during the step.
	Events []string `json:"events,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one entry per executed step, in order.
	Trace []TraceStep `json:"trace"`

	// Events contains every lifecycle event emitted during the run.
	Events []ir.Event `json:"events"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceStep{},
		Events: []ir.Event{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step outcome to the trace.
func (r *Result) AddStep(step TraceStep) {
	r.Trace = append(r.Trace, step)
}

// EventNames returns the names of every recorded event, in order.
func (r *Result) EventNames() []string {
	names := make([]string, len(r.Events))
	for i, e := range r.Events {
		names[i] = e.Name
	}
	return names
}
