package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/objgate/internal/changes"
	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/events"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
	"github.com/roach88/objgate/internal/rules"
	"github.com/roach88/objgate/internal/store"
)

// Factory creates fresh default instances of a type. It returns nil for a
// type it does not know.
type Factory interface {
	Create(typ string) ir.Object
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(typ string) ir.Object

// Create calls f(typ).
func (f FactoryFunc) Create(typ string) ir.Object { return f(typ) }

// Validator checks a fully built object before rules run.
type Validator interface {
	Validate(typ string, obj ir.Object) error
}

// Request carries the inputs of one engine call. Which fields matter
// depends on the operation.
type Request struct {
	Type string
	ID   string

	// Overlay is a partial object to merge, or a changeset.
	Overlay any

	// Changes is an explicit changeset. It takes precedence over Overlay.
	Changes ir.Changeset

	// Query is passed to the query-authoritative driver unchanged.
	Query any

	// Text is the search string for Search.
	Text string

	View  []string
	Sort  []queryir.SortKey
	Limit int

	// AllowMissing makes Get and Delete return an empty result instead of
	// NotFound.
	AllowMissing bool

	Meta ir.Meta
}

// Engine runs object operations.
type Engine struct {
	store    *store.Store
	rules    *rules.Registry
	factory  Factory
	validate Validator
	ids      IDGenerator
	notifier events.Notifier
	logger   *slog.Logger
	now      func() time.Time

	idField     string
	strictApply bool
	stampField  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDField sets the identifier field. Default ir.DefaultIDField.
func WithIDField(field string) Option {
	return func(e *Engine) { e.idField = field }
}

// WithIDGenerator sets the id source for new objects. Default
// UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithValidator checks every created or updated object after the changeset
// is applied and before write rules run.
func WithValidator(v Validator) Option {
	return func(e *Engine) { e.validate = v }
}

// WithNotifier sets the lifecycle event sink.
func WithNotifier(n events.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock sets the time source used to stamp modifications.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStrictApply rejects changesets whose paths do not resolve against the
// current object.
func WithStrictApply(strict bool) Option {
	return func(e *Engine) { e.strictApply = strict }
}

// WithStampField sets the modification timestamp field refreshed on every
// write. "-" disables stamping.
func WithStampField(field string) Option {
	return func(e *Engine) { e.stampField = field }
}

// New creates an Engine. A nil rule registry means a permissive, non-strict
// registry. A nil factory creates empty objects for every type.
func New(s *store.Store, reg *rules.Registry, factory Factory, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		rules:   reg,
		factory: factory,
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		now:     time.Now,
		idField: ir.DefaultIDField,
	}
	if e.rules == nil {
		e.rules = rules.NewRegistry()
	}
	if e.factory == nil {
		e.factory = FactoryFunc(func(string) ir.Object { return ir.Object{} })
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rule registry.
func (e *Engine) Rules() *rules.Registry {
	return e.rules
}

// IDField returns the identifier field.
func (e *Engine) IDField() string {
	return e.idField
}

func (e *Engine) driverOptions(req Request) driver.Options {
	return driver.Options{
		IDField: e.idField,
		View:    req.View,
		Sort:    req.Sort,
		Limit:   req.Limit,
	}
}

func (e *Engine) applyOptions() changes.Options {
	return changes.Options{
		Strict:     e.strictApply,
		StampField: e.stampField,
		Now:        e.now,
	}
}

// notify sends the lifecycle events for a persisted object. Each event gets
// its own copy of obj.
func (e *Engine) notify(action, typ, id string, obj ir.Object) {
	if e.notifier == nil {
		return
	}
	for _, name := range events.Names(action, typ, id) {
		e.send(ir.Event{Name: name, Type: typ, ID: id, Object: obj.Clone()})
	}
}

func (e *Engine) send(ev ir.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notifier panicked",
				"event", ev.Name,
				"type", ev.Type,
				"id", ev.ID,
				"panic", r)
		}
	}()
	e.notifier.Notify(ev)
}

// checkWrite runs the type-level and then the field-level write rules.
func (e *Engine) checkWrite(ctx context.Context, op *ir.Operation) error {
	op.Action = ir.ActionWrite
	if err := e.rules.CheckType(ctx, op); err != nil {
		return err
	}
	return e.rules.CheckChanges(ctx, op)
}
