package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/objgate/internal/changes"
	"github.com/roach88/objgate/internal/driver/memory"
	"github.com/roach88/objgate/internal/engine"
	"github.com/roach88/objgate/internal/events"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/model"
	"github.com/roach88/objgate/internal/queryir"
	"github.com/roach88/objgate/internal/rules"
	"github.com/roach88/objgate/internal/store"
	"github.com/roach88/objgate/internal/testutil"
)

// DefaultDriver is the data driver registered when a scenario lists none.
var DefaultDriver = DriverSpec{Name: "primary", Authority: "get,query,search"}

// Harness is the test execution engine.
// It runs scenarios against in-memory drivers with a frozen clock and
// sequential ids, so every run of a scenario produces the same trace.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	drivers  map[string]*memory.Driver
	recorder *events.Recorder
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh drivers for isolation.
//
// Execution flow:
// 1. Register drivers, rules, policy and models
// 2. Execute steps, checking each step's expectations
// 3. Evaluate assertions against the recorded events and final state
// 4. Return result with pass/fail, trace, and errors
//
// Errors in the scenario definition itself (bad policy, bad models, an
// unknown op) are returned as errors; mismatched expectations are recorded
// in the result.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		before := len(h.recorder.Events())
		ts, opErr, err := h.execute(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		emitted := h.recorder.Events()[before:]
		for _, ev := range emitted {
			ts.Events = append(ts.Events, ev.Name)
		}
		result.AddStep(ts)
		for _, msg := range checkExpect(ts, step.Expect, opErr) {
			result.AddError(msg)
		}
	}
	result.Events = append(result.Events, h.recorder.Events()...)

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   h.store,
		Drivers: h.drivers,
		IDField: h.engine.IDField(),
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	// A frozen clock keeps every timestamp identical across runs.
	now := func() time.Time { return testutil.Epoch }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.New(
		store.WithLogger(logger),
		store.WithClock(now),
		store.WithLogIDs(testutil.NewSequentialIDs("log").Generate),
	)

	specs := scenario.Drivers
	if len(specs) == 0 {
		specs = []DriverSpec{DefaultDriver}
	}
	drivers := make(map[string]*memory.Driver, len(specs))
	for _, spec := range specs {
		d := memory.New()
		if err := st.AddDriver(spec.Name, d, spec.Authority); err != nil {
			return nil, fmt.Errorf("failed to register driver %q: %w", spec.Name, err)
		}
		drivers[spec.Name] = d
	}
	if err := st.AddLogDriver("audit", memory.New(), "query"); err != nil {
		return nil, fmt.Errorf("failed to register log driver: %w", err)
	}

	fp, err := rules.ParseFieldPolicy(scenario.FieldPolicy)
	if err != nil {
		return nil, err
	}
	reg := rules.NewRegistry(rules.WithStrict(scenario.Strict), rules.WithFieldPolicy(fp))
	if scenario.Policy != "" {
		p, err := rules.ParsePolicy([]byte(scenario.Policy))
		if err != nil {
			return nil, err
		}
		p.Install(reg)
	}

	models := model.NewRegistry(model.Open(true), model.WithClock(now))
	if scenario.Models != "" {
		if err := models.Compile(scenario.Name+".cue", scenario.Models); err != nil {
			return nil, err
		}
	}

	rec := &events.Recorder{}
	eng := engine.New(st, reg, models,
		engine.WithIDGenerator(testutil.NewSequentialIDs(scenario.IDPrefix)),
		engine.WithValidator(models),
		engine.WithNotifier(rec),
		engine.WithLogger(logger),
		engine.WithClock(now),
		engine.WithStrictApply(scenario.StrictApply),
	)

	return &Harness{
		store:    st,
		engine:   eng,
		drivers:  drivers,
		recorder: rec,
	}, nil
}

// execute runs one step. opErr is the engine's error for the step, which the
// caller checks against expectations; err means the step could not run.
func (h *Harness) execute(ctx context.Context, n int, step Step) (ts TraceStep, opErr error, err error) {
	ts = TraceStep{Step: n, Op: step.Op, Type: step.Type, ID: step.ID}

	req, opErr := h.request(step)
	if opErr != nil {
		ts.Error = ir.Body(opErr).Error
		return ts, opErr, nil
	}

	switch step.Op {
	case OpCreate:
		var obj ir.Object
		obj, opErr = h.engine.Create(ctx, req)
		if opErr == nil {
			ts.ID = obj.ID(h.engine.IDField())
			ts.Result = obj
		}
	case OpGet:
		var obj ir.Object
		obj, opErr = h.engine.Get(ctx, req)
		if opErr == nil && obj != nil {
			ts.Result = obj
		}
	case OpUpdate:
		var obj ir.Object
		obj, opErr = h.engine.Update(ctx, req)
		if opErr == nil {
			ts.Result = obj
		}
	case OpDelete:
		var deleted bool
		deleted, opErr = h.engine.Delete(ctx, req)
		if opErr == nil {
			ts.Result = deleted
		}
	case OpQuery, OpSearch:
		var objs []ir.Object
		if step.Op == OpQuery {
			objs, opErr = h.engine.Query(ctx, req)
		} else {
			objs, opErr = h.engine.Search(ctx, req)
		}
		if opErr == nil {
			ts.Result = objectList(objs)
		}
	case OpLog:
		var entries []ir.LogEntry
		entries, opErr = h.engine.GetLog(ctx, req)
		if opErr == nil {
			list := make([]any, len(entries))
			for i, e := range entries {
				list[i] = store.EntryObject(e)
			}
			ts.Result = list
		}
	default:
		return ts, nil, fmt.Errorf("unknown op %q", step.Op)
	}

	if opErr != nil {
		ts.Error = ir.Body(opErr).Error
	}
	return ts, opErr, nil
}

// request converts a step into an engine request. YAML values are passed
// through JSON so that they have the same shapes as decoded request bodies.
func (h *Harness) request(step Step) (engine.Request, error) {
	req := engine.Request{
		Type:         step.Type,
		ID:           step.ID,
		Text:         step.Text,
		View:         step.View,
		Sort:         queryir.ParseSort(step.Sort...),
		Limit:        step.Limit,
		AllowMissing: step.AllowMissing,
		Meta:         ir.Meta{User: step.User, Roles: step.Roles},
	}
	if step.Data != nil {
		v, err := jsonValue(step.Data)
		if err != nil {
			return req, err
		}
		req.Overlay = v
	}
	if step.Changes != nil {
		v, err := jsonValue(step.Changes)
		if err != nil {
			return req, err
		}
		list, _ := v.([]any)
		cs, err := changes.FromValue(list)
		if err != nil {
			return req, err
		}
		req.Changes = cs
	}
	if step.Where != nil {
		v, err := jsonValue(step.Where)
		if err != nil {
			return req, err
		}
		req.Query = v
	}
	return req, nil
}

func objectList(objs []ir.Object) []any {
	list := make([]any, len(objs))
	for i, obj := range objs {
		list[i] = obj
	}
	return list
}

// jsonValue round-trips a YAML-decoded value through JSON.
func jsonValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ir.InvalidInput("encode step value: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, ir.InvalidInput("decode step value: %v", err)
	}
	return out, nil
}
