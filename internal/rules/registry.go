package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/objgate/internal/ir"
)

// Rule inspects an operation and returns nil to pass or an error to veto.
// Rules must not modify op.
type Rule func(ctx context.Context, op *ir.Operation) error

// Key identifies a rule slot. Type and Action are matched
// case-insensitively; Field is matched exactly.
type Key struct {
	Type   string
	Action ir.Action
	Field  string
}

// NewKey builds a normalized Key.
func NewKey(typ string, action ir.Action, field string) Key {
	return Key{
		Type:   strings.ToLower(typ),
		Action: ir.Action(strings.ToLower(string(action))),
		Field:  field,
	}
}

func (k Key) String() string {
	if k.Field == "" {
		return fmt.Sprintf("%s/%s", k.Type, k.Action)
	}
	return fmt.Sprintf("%s/%s/%s", k.Type, k.Action, k.Field)
}

// FieldPolicy decides what a field key with no registered rules means.
type FieldPolicy string

const (
	// FieldStrict applies the registry's strict mode to field keys: with
	// strict on, a changed field with no rules is denied.
	FieldStrict FieldPolicy = "strict"

	// FieldAllow always allows fields that have no rules.
	FieldAllow FieldPolicy = "allow"

	// FieldInherit defers fields with no rules to the whole-object decision,
	// which has already passed by the time fields are checked.
	FieldInherit FieldPolicy = "inherit"
)

// ParseFieldPolicy parses a policy name. Empty means FieldStrict.
func ParseFieldPolicy(s string) (FieldPolicy, error) {
	switch p := FieldPolicy(strings.ToLower(s)); p {
	case "":
		return FieldStrict, nil
	case FieldStrict, FieldAllow, FieldInherit:
		return p, nil
	}
	return "", ir.InvalidInput("unknown field policy %q", s)
}

// Handle identifies a registered rule for removal.
type Handle struct {
	key Key
	id  uint64
}

// Key returns the slot the rule was registered under.
func (h Handle) Key() Key { return h.key }

type entry struct {
	id   uint64
	rule Rule
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrict enables fail-closed evaluation.
func WithStrict(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// WithFieldPolicy sets the policy for field keys with no rules.
func WithFieldPolicy(p FieldPolicy) Option {
	return func(r *Registry) { r.fieldPolicy = p }
}

// Registry holds rules keyed by (type, action, field).
type Registry struct {
	mu          sync.RWMutex
	rules       map[Key][]entry
	nextID      uint64
	strict      bool
	fieldPolicy FieldPolicy
}

// NewRegistry creates an empty registry. Strict mode is off by default.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rules:       make(map[Key][]entry),
		fieldPolicy: FieldStrict,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetStrict toggles fail-closed evaluation.
func (r *Registry) SetStrict(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict = strict
}

// Strict reports whether fail-closed evaluation is on.
func (r *Registry) Strict() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strict
}

// SetFieldPolicy changes the policy for field keys with no rules.
func (r *Registry) SetFieldPolicy(p FieldPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fieldPolicy = p
}

// FieldPolicy returns the current field policy.
func (r *Registry) FieldPolicy() FieldPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fieldPolicy
}

// Add registers rule under (typ, action, field). An empty field registers a
// whole-object rule. Rules for a key run in registration order.
func (r *Registry) Add(typ string, action ir.Action, field string, rule Rule) Handle {
	key := NewKey(typ, action, field)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.rules[key] = append(r.rules[key], entry{id: r.nextID, rule: rule})
	return Handle{key: key, id: r.nextID}
}

// Remove unregisters the rule identified by h. It reports whether the rule
// was still registered.
func (r *Registry) Remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.rules[h.key]
	for i, e := range entries {
		if e.id != h.id {
			continue
		}
		entries = append(entries[:i:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(r.rules, h.key)
		} else {
			r.rules[h.key] = entries
		}
		return true
	}
	return false
}

// Count returns the number of rules registered for key.
func (r *Registry) Count(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules[NewKey(key.Type, key.Action, key.Field)])
}

func (r *Registry) snapshot(key Key) (rules []Rule, strict bool, policy FieldPolicy) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.rules[key]
	rules = make([]Rule, len(entries))
	for i, e := range entries {
		rules[i] = e.rule
	}
	return rules, r.strict, r.fieldPolicy
}

// CheckType evaluates the whole-object rules for (op.Type, op.Action).
func (r *Registry) CheckType(ctx context.Context, op *ir.Operation) error {
	key := NewKey(op.Type, op.Action, "")
	rules, strict, _ := r.snapshot(key)
	if len(rules) == 0 {
		if strict {
			return denyUnregistered(op, key)
		}
		return nil
	}
	return run(ctx, rules, op)
}

// CheckChanges evaluates field rules for every change in op.Changes. Changes
// are checked concurrently; the first failure cancels the remaining checks
// and is returned.
func (r *Registry) CheckChanges(ctx context.Context, op *ir.Operation) error {
	if len(op.Changes) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range op.Changes {
		fieldOp := op.WithChange(c)
		g.Go(func() error {
			return r.checkField(gctx, fieldOp)
		})
	}
	return g.Wait()
}

func (r *Registry) checkField(ctx context.Context, op *ir.Operation) error {
	key := NewKey(op.Type, op.Action, op.Field())
	rules, strict, policy := r.snapshot(key)
	if len(rules) == 0 {
		if strict && policy == FieldStrict {
			return denyUnregistered(op, key)
		}
		return nil
	}
	return run(ctx, rules, op)
}

func run(ctx context.Context, rules []Rule, op *ir.Operation) error {
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rule(ctx, op); err != nil {
			return asPermissionError(op, err)
		}
	}
	return nil
}

func denyUnregistered(op *ir.Operation, key Key) error {
	e := ir.PermissionDenied("no rules registered for %s", key)
	e.Type, e.ID = op.Type, op.ID
	return e
}

// asPermissionError keeps typed errors and wraps anything else as a
// permission failure.
func asPermissionError(op *ir.Operation, err error) error {
	if ir.KindOf(err) != "" {
		return err
	}
	return &ir.Error{
		Kind:    ir.KindPermissionDenied,
		Message: err.Error(),
		Type:    op.Type,
		ID:      op.ID,
		Err:     err,
	}
}
