package queryir

import (
	"strings"

	"github.com/roach88/objgate/internal/ir"
)

// Parse converts a caller-supplied query specification into a Select.
// See the package documentation for the accepted shapes.
func Parse(q any) (Select, error) {
	switch v := q.(type) {
	case nil:
		return Select{}, nil
	case Select:
		return v, Validate(v.Filter)
	case *Select:
		if v == nil {
			return Select{}, nil
		}
		return *v, Validate(v.Filter)
	case Predicate:
		p := deref(v)
		return Select{Filter: p}, Validate(p)
	case string:
		return Select{}, ir.InvalidInput("query strings are not supported by this driver: %q", v)
	}
	m, ok := ir.AsMap(q)
	if !ok {
		return Select{}, ir.InvalidInput("unsupported query type %T", q)
	}
	p, err := fromMap(m)
	if err != nil {
		return Select{}, err
	}
	return Select{Filter: p}, nil
}

// Normalize converts a query specification into a single Predicate,
// discarding any sort and limit. A nil predicate matches everything.
func Normalize(q any) (Predicate, error) {
	sel, err := Parse(q)
	if err != nil {
		return nil, err
	}
	return sel.Filter, nil
}

func fromMap(m map[string]any) (Predicate, error) {
	var preds []Predicate
	for _, field := range ir.Object(m).SortedKeys() {
		if field == "$and" {
			clauses, ok := m[field].([]any)
			if !ok {
				return nil, ir.InvalidInput("$and expects a list of queries")
			}
			for _, clause := range clauses {
				cm, ok := ir.AsMap(clause)
				if !ok {
					return nil, ir.InvalidInput("$and clause must be an object")
				}
				p, err := fromMap(cm)
				if err != nil {
					return nil, err
				}
				preds = append(preds, p)
			}
			continue
		}
		fieldPreds, err := fieldPredicates(field, m[field])
		if err != nil {
			return nil, err
		}
		preds = append(preds, fieldPreds...)
	}
	var p Predicate = And{Predicates: preds}
	if len(preds) == 1 {
		p = preds[0]
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

var operators = map[string]Op{
	"$ne":  OpNe,
	"$lt":  OpLt,
	"$lte": OpLe,
	"$gt":  OpGt,
	"$gte": OpGe,
}

func fieldPredicates(field string, value any) ([]Predicate, error) {
	if field == "" {
		return nil, ir.InvalidInput("empty field name in query")
	}
	ops, ok := ir.AsMap(value)
	if !ok {
		if !isScalar(value) {
			return nil, ir.InvalidInput("field %q: only scalar values can be matched", field)
		}
		return []Predicate{Equals{Field: field, Value: value}}, nil
	}

	var preds []Predicate
	for _, name := range ir.Object(ops).SortedKeys() {
		arg := ops[name]
		switch name {
		case "$eq":
			preds = append(preds, Equals{Field: field, Value: arg})
		case "$exists":
			if b, _ := arg.(bool); !b {
				return nil, ir.InvalidInput("field %q: only $exists: true is supported", field)
			}
			preds = append(preds, Exists{Field: field})
		default:
			op, known := operators[name]
			if !known && !strings.HasPrefix(name, "$") {
				return nil, ir.InvalidInput("field %q: nested object matching is not supported, use a dotted field name", field)
			}
			if !known {
				return nil, ir.InvalidInput("field %q: unsupported operator %q", field, name)
			}
			preds = append(preds, Compare{Field: field, Op: op, Value: arg})
		}
	}
	if len(preds) == 0 {
		return nil, ir.InvalidInput("field %q: empty operator object", field)
	}
	return preds, nil
}

// deref converts pointer predicates to their value form.
func deref(p Predicate) Predicate {
	switch v := p.(type) {
	case *Equals:
		return *v
	case *Compare:
		return *v
	case *Exists:
		return *v
	case *And:
		return *v
	}
	return p
}

func isScalar(v any) bool {
	if _, ok := ir.AsNumber(v); ok {
		return true
	}
	switch v.(type) {
	case nil, bool, string:
		return true
	}
	return false
}
