package queryir

import (
	"strings"

	"github.com/roach88/objgate/internal/ir"
)

// Lookup resolves a dotted field path inside obj.
func Lookup(obj map[string]any, field string) (any, bool) {
	var cur any = obj
	for _, seg := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case []any:
			idx, ok := parseIndex(seg)
			if !ok || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			m, ok := ir.AsMap(node)
			if !ok {
				return nil, false
			}
			cur, ok = m[seg]
			if !ok {
				return nil, false
			}
		}
	}
	return cur, true
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Match reports whether obj satisfies p. A nil predicate matches.
func Match(obj ir.Object, p Predicate) bool {
	if p == nil {
		return true
	}
	switch pred := deref(p).(type) {
	case Equals:
		v, ok := Lookup(obj, pred.Field)
		if pred.Value == nil {
			return !ok || v == nil
		}
		return ok && v != nil && CompareValues(v, pred.Value) == 0
	case Compare:
		v, ok := Lookup(obj, pred.Field)
		if !ok || v == nil {
			return false
		}
		c := CompareValues(v, pred.Value)
		switch pred.Op {
		case OpNe:
			return c != 0
		case OpLt:
			return c < 0
		case OpLe:
			return c <= 0
		case OpGt:
			return c > 0
		case OpGe:
			return c >= 0
		}
		return false
	case Exists:
		_, ok := Lookup(obj, pred.Field)
		return ok
	case And:
		for _, sub := range pred.Predicates {
			if !Match(obj, sub) {
				return false
			}
		}
		return true
	}
	return false
}

// MatchText reports whether any string value in obj contains text,
// ignoring case. Empty text matches everything.
func MatchText(obj ir.Object, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	return containsText(map[string]any(obj), strings.ToLower(text))
}

func containsText(v any, needle string) bool {
	switch val := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(val), needle)
	case []any:
		for _, e := range val {
			if containsText(e, needle) {
				return true
			}
		}
		return false
	}
	if m, ok := ir.AsMap(v); ok {
		for _, e := range m {
			if containsText(e, needle) {
				return true
			}
		}
	}
	return false
}

// rank orders value kinds the way SQLite orders json_extract results.
func rank(v any) int {
	if _, ok := ir.AsNumber(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 2
	}
	return 3
}

func number(v any) float64 {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	n, _ := ir.AsNumber(v)
	return n
}

// CompareValues orders two JSON-compatible values. Values of different kinds
// order null < number/bool < string < container; containers compare equal
// to each other.
func CompareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		na, nb := number(a), number(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}
