package engine

import (
	"context"

	"github.com/roach88/objgate/internal/changes"
	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/events"
	"github.com/roach88/objgate/internal/ir"
)

// Create builds a new object of req.Type from the factory default and
// req.Overlay (or req.Changes), checks write rules, persists it and emits
// "created" and "created.<type>".
//
// The id is req.ID, else the overlay's id field, else a generated one.
func (e *Engine) Create(ctx context.Context, req Request) (ir.Object, error) {
	current := e.factory.Create(req.Type)
	if current == nil {
		return nil, ir.InvalidInput("no factory for type %q", req.Type)
	}

	id := req.ID
	if id == "" {
		id = overlayID(req.Overlay, e.idField)
	}
	if id == "" {
		id = e.ids.Generate()
	}
	current[e.idField] = id

	op := e.newWrite(req, id, current)
	if err := e.build(op, changeSource(req)); err != nil {
		return nil, err
	}
	if err := e.checkWrite(ctx, op); err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, req.Type, op.Updated, ir.AuditCreate, req.Meta, e.writeOptions()); err != nil {
		return nil, err
	}
	op.Result = op.Updated

	e.logger.Debug("object created", "type", req.Type, "id", id)
	e.notify(events.Created, req.Type, id, op.Updated)
	return op.Updated, nil
}

// Get fetches one object and checks read rules. A missing object is
// NotFound unless req.AllowMissing, in which case the result is nil.
func (e *Engine) Get(ctx context.Context, req Request) (ir.Object, error) {
	if err := requireID(req); err != nil {
		return nil, err
	}
	obj, err := e.store.Get(ctx, req.Type, req.ID, e.driverOptions(req))
	if err != nil {
		return nil, err
	}
	if obj == nil && !req.AllowMissing {
		return nil, ir.NotFound(req.Type, req.ID)
	}

	op := &ir.Operation{
		Type:    req.Type,
		ID:      req.ID,
		Action:  ir.ActionRead,
		Current: obj,
		Meta:    req.Meta,
		Result:  obj,
	}
	if err := e.rules.CheckType(ctx, op); err != nil {
		return nil, err
	}
	return obj, nil
}

// Update applies req.Changes (or the changeset computed from req.Overlay)
// to the stored object, checks write rules, persists the result and emits
// "updated", "updated.<type>" and "updated.<type>.<id>".
//
// A missing object is created from the factory default first. If the
// factory does not know the type either, the result is NotFound.
func (e *Engine) Update(ctx context.Context, req Request) (ir.Object, error) {
	if err := requireID(req); err != nil {
		return nil, err
	}
	current, err := e.store.Get(ctx, req.Type, req.ID, e.writeOptions())
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = e.factory.Create(req.Type)
		if current == nil {
			return nil, ir.NotFound(req.Type, req.ID)
		}
		current[e.idField] = req.ID
	}

	source := changeSource(req)
	if source == nil {
		return nil, ir.InvalidInput("update of %s %q requires an overlay or changes", req.Type, req.ID)
	}

	op := e.newWrite(req, req.ID, current)
	if err := e.build(op, source); err != nil {
		return nil, err
	}
	if err := e.checkWrite(ctx, op); err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, req.Type, op.Updated, ir.AuditUpdate, req.Meta, e.writeOptions()); err != nil {
		return nil, err
	}
	op.Result = op.Updated

	e.logger.Debug("object updated", "type", req.Type, "id", req.ID, "changes", len(op.Changes))
	e.notify(events.Updated, req.Type, req.ID, op.Updated)
	return op.Updated, nil
}

// Delete removes an object from every data driver after checking delete
// rules. It reports whether any driver removed a record. A missing object
// is NotFound unless req.AllowMissing.
func (e *Engine) Delete(ctx context.Context, req Request) (bool, error) {
	if err := requireID(req); err != nil {
		return false, err
	}
	current, err := e.store.Get(ctx, req.Type, req.ID, e.writeOptions())
	if err != nil {
		return false, err
	}
	if current == nil && !req.AllowMissing {
		return false, ir.NotFound(req.Type, req.ID)
	}

	op := &ir.Operation{
		Type:    req.Type,
		ID:      req.ID,
		Action:  ir.ActionDelete,
		Current: current,
		Meta:    req.Meta,
	}
	if err := e.rules.CheckType(ctx, op); err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}

	n, err := e.store.Delete(ctx, req.Type, req.ID, req.Meta, e.writeOptions())
	if err != nil {
		return false, err
	}
	op.Result = n > 0

	e.logger.Debug("object deleted", "type", req.Type, "id", req.ID, "removed", n)
	return n > 0, nil
}

// Query runs req.Query on the query-authoritative driver and then checks
// query rules. The result is never nil.
func (e *Engine) Query(ctx context.Context, req Request) ([]ir.Object, error) {
	results, err := e.store.Query(ctx, req.Type, req.Query, e.driverOptions(req))
	if err != nil {
		return nil, err
	}
	return e.checkResults(ctx, req, req.Query, results)
}

// Search runs a free-text search on the search-authoritative driver and
// then checks query rules.
func (e *Engine) Search(ctx context.Context, req Request) ([]ir.Object, error) {
	results, err := e.store.Search(ctx, req.Type, req.Text, e.driverOptions(req))
	if err != nil {
		return nil, err
	}
	return e.checkResults(ctx, req, req.Text, results)
}

// GetLog checks log rules and returns up to req.Limit audit entries for
// req.Type and req.ID, newest first.
func (e *Engine) GetLog(ctx context.Context, req Request) ([]ir.LogEntry, error) {
	op := &ir.Operation{
		Type:   req.Type,
		ID:     req.ID,
		Action: ir.ActionLog,
		Meta:   req.Meta,
	}
	if err := e.rules.CheckType(ctx, op); err != nil {
		return nil, err
	}
	return e.store.GetLog(ctx, req.Type, req.ID, req.Limit)
}

func (e *Engine) checkResults(ctx context.Context, req Request, query any, results []ir.Object) ([]ir.Object, error) {
	if results == nil {
		results = []ir.Object{}
	}
	op := &ir.Operation{
		Type:   req.Type,
		Action: ir.ActionQuery,
		Query:  query,
		Meta:   req.Meta,
		Result: results,
	}
	if err := e.rules.CheckType(ctx, op); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) newWrite(req Request, id string, current ir.Object) *ir.Operation {
	op := &ir.Operation{
		Type:     req.Type,
		ID:       id,
		Action:   ir.ActionWrite,
		Current:  current,
		Explicit: req.Changes,
		Meta:     req.Meta,
	}
	if m, ok := ir.AsMap(req.Overlay); ok {
		op.Overlay = ir.Object(m)
	}
	return op
}

// build computes and applies the changeset for op. The id field must
// survive unchanged and the result must pass the validator.
func (e *Engine) build(op *ir.Operation, source any) error {
	cs, err := changes.Compute(op.Current, source)
	if err != nil {
		return err
	}
	updated, err := changes.Apply(op.Current, cs, e.applyOptions())
	if err != nil {
		return err
	}
	if got := updated[e.idField]; got != op.ID {
		return ir.InvalidInput("%s %q: field %q cannot be changed", op.Type, op.ID, e.idField)
	}
	if e.validate != nil {
		if err := e.validate.Validate(op.Type, updated); err != nil {
			return err
		}
	}
	op.Changes = cs
	op.Updated = updated
	return nil
}

func (e *Engine) writeOptions() driver.Options {
	return driver.Options{IDField: e.idField}
}

func changeSource(req Request) any {
	if req.Changes != nil {
		return req.Changes
	}
	return req.Overlay
}

func overlayID(overlay any, field string) string {
	m, ok := ir.AsMap(overlay)
	if !ok {
		return ""
	}
	id, _ := m[field].(string)
	return id
}

func requireID(req Request) error {
	if req.ID == "" {
		return ir.InvalidInput("%s: id is required", req.Type)
	}
	return nil
}
