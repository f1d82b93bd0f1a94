// Package memory provides a process-local driver.
//
// It is safe for concurrent use and copies objects on the way in and out so
// callers can never mutate stored state. It understands the structured
// queries of package queryir.
package memory

import (
	"context"
	"sync"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
)

// Driver stores objects in nested maps keyed by type and id.
type Driver struct {
	mu      sync.RWMutex
	objects map[string]map[string]ir.Object
}

var _ driver.Driver = (*Driver)(nil)

// New constructs an empty memory driver.
func New() *Driver {
	return &Driver{objects: make(map[string]map[string]ir.Object)}
}

// Get returns a copy of the stored object or nil.
func (d *Driver) Get(_ context.Context, typ, id string, opts driver.Options) (ir.Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.objects[typ][id]
	if !ok {
		return nil, nil
	}
	return obj.Project(opts.ID(), opts.View), nil
}

// Put stores a copy of obj, replacing any object with the same id.
func (d *Driver) Put(_ context.Context, typ string, obj ir.Object, opts driver.Options) error {
	id := obj.ID(opts.ID())
	if id == "" {
		return ir.InvalidInput("put %s: object has no %q field", typ, opts.ID())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	byID, ok := d.objects[typ]
	if !ok {
		byID = make(map[string]ir.Object)
		d.objects[typ] = byID
	}
	byID[id] = obj.Clone()
	return nil
}

// Delete removes the object and reports whether it existed.
func (d *Driver) Delete(_ context.Context, typ, id string, _ driver.Options) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.objects[typ][id]; !ok {
		return 0, nil
	}
	delete(d.objects[typ], id)
	return 1, nil
}

// Query returns copies of the objects matching query.
func (d *Driver) Query(_ context.Context, typ string, query any, opts driver.Options) ([]ir.Object, error) {
	sel, err := queryir.Parse(query)
	if err != nil {
		return nil, err
	}
	return d.collect(typ, opts, sel, func(obj ir.Object) bool {
		return queryir.Match(obj, sel.Filter)
	}), nil
}

// Search returns copies of the objects with a string value containing text.
func (d *Driver) Search(_ context.Context, typ, text string, opts driver.Options) ([]ir.Object, error) {
	return d.collect(typ, opts, queryir.Select{}, func(obj ir.Object) bool {
		return queryir.MatchText(obj, text)
	}), nil
}

// Len returns the number of stored objects of typ.
func (d *Driver) Len(typ string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects[typ])
}

func (d *Driver) collect(typ string, opts driver.Options, sel queryir.Select, keep func(ir.Object) bool) []ir.Object {
	d.mu.RLock()
	matched := []ir.Object{}
	for _, obj := range d.objects[typ] {
		if keep(obj) {
			matched = append(matched, obj)
		}
	}
	d.mu.RUnlock()

	sortKeys := opts.Sort
	if len(sortKeys) == 0 {
		sortKeys = sel.Sort
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = sel.Limit
	}

	queryir.SortObjects(matched, sortKeys, opts.ID())
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]ir.Object, len(matched))
	for i, obj := range matched {
		out[i] = obj.Project(opts.ID(), opts.View)
	}
	return out
}
