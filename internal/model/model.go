// Package model provides object factories backed by CUE definitions.
//
// Each top-level struct in a CUE source is one object type:
//
//	widget: {
//		name:  string | *""
//		price: number & >=0 | *0
//		tags:  [...string] | *[]
//	}
//
// Create returns a fresh instance filled with the definition's defaults and
// stamped with createdAt/updatedAt. Validate unifies an object with its
// definition and requires the result to be concrete.
//
// Uses CUE SDK's Go API directly (not CLI subprocess). A cue.Context is not
// safe for concurrent use, so every access is serialized by the registry.
package model

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/rules"
)

// Timestamp fields stamped by Create.
const (
	CreatedField = "createdAt"
	UpdatedField = "updatedAt"
)

// Field describes one field of a model.
type Field struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Model is a compiled object type.
type Model struct {
	Name   string
	Fields []Field

	value    cue.Value
	defaults ir.Object
}

// Option configures a Registry.
type Option func(*Registry)

// Open makes Create return an empty timestamped object for types that have
// no definition instead of nil.
func Open(open bool) Option {
	return func(r *Registry) { r.open = open }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry holds compiled models keyed by type name.
type Registry struct {
	mu     sync.Mutex
	ctx    *cue.Context
	models map[string]*Model
	open   bool
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ctx:    cuecontext.New(),
		models: make(map[string]*Model),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile compiles CUE source and registers every top-level struct in it.
// name is used as the file name in error positions.
func (r *Registry) Compile(name, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile %s: %w", name, formatCUEError(err))
	}
	return r.register(v)
}

// Load loads the CUE package in dir and registers every top-level struct.
func (r *Registry) Load(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("load models: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return fmt.Errorf("load models: no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return fmt.Errorf("load models: %w", formatCUEError(inst.Err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return fmt.Errorf("build models: %w", formatCUEError(err))
	}
	return r.register(v)
}

// register compiles each top-level struct field of v. Caller holds r.mu.
func (r *Registry) register(v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	compiled := make(map[string]*Model)
	for iter.Next() {
		fv := iter.Value()
		if fv.IncompleteKind() != cue.StructKind {
			continue
		}
		m, err := compileModel(iter.Selector().Unquoted(), fv)
		if err != nil {
			return err
		}
		compiled[m.Name] = m
	}

	for name, m := range compiled {
		r.models[name] = m
	}
	return nil
}

func compileModel(name string, v cue.Value) (*Model, error) {
	m := &Model{Name: name, value: v, defaults: ir.Object{}}

	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		fv := iter.Value()

		m.Fields = append(m.Fields, Field{Name: label, Kind: kindName(fv)})

		if iter.IsOptional() {
			continue
		}
		dv, ok := fv.Default()
		if !ok && !dv.IsConcrete() {
			continue
		}
		if dv.Validate(cue.Concrete(true)) != nil {
			continue
		}
		var x any
		if err := dv.Decode(&x); err != nil {
			return nil, fmt.Errorf("model %s: default for %s: %w", name, label, formatCUEError(err))
		}
		m.defaults[label] = x
	}

	sort.Slice(m.Fields, func(i, j int) bool { return m.Fields[i].Name < m.Fields[j].Name })
	return m, nil
}

// kindName renders the CUE kind of a field for listings.
func kindName(v cue.Value) string {
	switch k := v.IncompleteKind(); k {
	case cue.StringKind:
		return "string"
	case cue.IntKind:
		return "int"
	case cue.FloatKind, cue.NumberKind:
		return "number"
	case cue.BoolKind:
		return "bool"
	case cue.ListKind:
		return "array"
	case cue.StructKind:
		return "object"
	case cue.NullKind:
		return "null"
	default:
		return "any"
	}
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model returns the model for typ.
func (r *Registry) Model(typ string) (*Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[typ]
	return m, ok
}

// Create returns a fresh instance of typ with defaults and timestamps. It
// returns nil for an unknown type unless the registry is open.
func (r *Registry) Create(typ string) ir.Object {
	r.mu.Lock()
	m, ok := r.models[typ]
	open := r.open
	r.mu.Unlock()

	var obj ir.Object
	switch {
	case ok:
		obj = m.defaults.Clone()
	case open:
		obj = ir.Object{}
	default:
		return nil
	}

	ts := r.now().UTC().Format(time.RFC3339Nano)
	obj[CreatedField] = ts
	obj[UpdatedField] = ts
	return obj
}

// Validate checks obj against the definition of typ. Types without a
// definition always validate.
func (r *Registry) Validate(typ string, obj ir.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[typ]
	if !ok {
		return nil
	}

	doc := r.ctx.Encode(cueCompatible(map[string]any(obj)))
	if err := doc.Err(); err != nil {
		return ir.InvalidInput("%s: %v", typ, formatCUEError(err))
	}
	if err := m.value.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return ir.InvalidInput("%s: %v", typ, formatCUEError(err))
	}
	return nil
}

// Rule returns a rule that validates the post-change object of a write.
func (r *Registry) Rule() rules.Rule {
	return func(_ context.Context, op *ir.Operation) error {
		if op.Updated == nil {
			return nil
		}
		return r.Validate(op.Type, op.Updated)
	}
}

// cueCompatible converts integral float64 values to int64 so that JSON
// numbers unify with CUE int constraints.
func cueCompatible(v any) any {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = cueCompatible(x)
		}
		return out
	case ir.Object:
		return cueCompatible(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = cueCompatible(x)
		}
		return out
	default:
		return v
	}
}

// CompileError is a CUE error with its source position.
type CompileError struct {
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{Message: first.Error(), Pos: positions[0]}
	}
	return err
}
