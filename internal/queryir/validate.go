package queryir

import (
	"github.com/roach88/objgate/internal/ir"
)

// Validate checks that a predicate is well formed: every field name is
// non-empty, every operator is known and every literal is a scalar.
// A nil predicate is valid.
func Validate(p Predicate) error {
	if p == nil {
		return nil
	}
	switch pred := deref(p).(type) {
	case Equals:
		if pred.Field == "" {
			return ir.InvalidInput("equals: empty field name")
		}
		if !isScalar(pred.Value) {
			return ir.InvalidInput("equals %q: value must be a scalar, got %T", pred.Field, pred.Value)
		}
	case Compare:
		if pred.Field == "" {
			return ir.InvalidInput("compare: empty field name")
		}
		if !pred.Op.Valid() {
			return ir.InvalidInput("compare %q: unknown operator %q", pred.Field, pred.Op)
		}
		if pred.Value == nil || !isScalar(pred.Value) {
			return ir.InvalidInput("compare %q: value must be a non-null scalar", pred.Field)
		}
	case Exists:
		if pred.Field == "" {
			return ir.InvalidInput("exists: empty field name")
		}
	case And:
		for _, sub := range pred.Predicates {
			if err := Validate(sub); err != nil {
				return err
			}
		}
	default:
		return ir.InvalidInput("unknown predicate type %T", p)
	}
	return nil
}
