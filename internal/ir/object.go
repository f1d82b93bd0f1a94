package ir

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// DefaultIDField is the identifier field used when none is configured.
const DefaultIDField = "id"

// Object is an open-ended mapping from field name to value.
//
// Values are JSON-compatible: nil, bool, string, numbers (float64 after a
// JSON round trip, int/int64 when built in Go), []any and map[string]any.
// Nested maps may be either Object or map[string]any.
type Object map[string]any

// ID returns the string identifier stored under field, or "" if the field
// is absent or not a string.
func (obj Object) ID(field string) string {
	if field == "" {
		field = DefaultIDField
	}
	s, _ := obj[field].(string)
	return s
}

// Has reports whether field is present (even if its value is nil).
func (obj Object) Has(field string) bool {
	_, ok := obj[field]
	return ok
}

// Clone returns a deep copy of the object. A nil object clones to nil.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = CloneValue(v)
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	return sortedKeys(obj)
}

// Project returns a copy holding only the named fields. The id field is
// always kept. An empty field list returns a full copy.
func (obj Object) Project(idField string, fields []string) Object {
	if len(fields) == 0 {
		return obj.Clone()
	}
	if idField == "" {
		idField = DefaultIDField
	}
	out := make(Object, len(fields)+1)
	if v, ok := obj[idField]; ok {
		out[idField] = CloneValue(v)
	}
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = CloneValue(v)
		}
	}
	return out
}

// CloneValue deep-copies a JSON-compatible value. Maps are returned as
// map[string]any regardless of their input type, except Object which stays
// an Object.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Object:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return val
	}
}

// AsMap returns v as a map[string]any when it is an Object or a plain map.
func AsMap(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case Object:
		return map[string]any(val), true
	case map[string]any:
		return val, true
	default:
		return nil, false
	}
}

// AsNumber converts any Go numeric value to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// MaxIndex is the largest array index a path segment may name.
const MaxIndex = math.MaxInt32

// AsIndex converts a path segment to an array index. JSON-decoded indices
// arrive as float64 and are accepted when integral and at most MaxIndex.
func AsIndex(v any) (int, bool) {
	n, ok := AsNumber(v)
	if !ok || n < 0 || n > MaxIndex || n != math.Trunc(n) {
		return 0, false
	}
	return int(n), true
}

// Equal reports deep equality of two JSON-compatible values. Numbers compare
// by value regardless of Go type, so int(5) equals float64(5).
func Equal(a, b any) bool {
	if na, ok := AsNumber(a); ok {
		nb, ok := AsNumber(b)
		return ok && na == nb
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	am, ok := AsMap(a)
	if !ok {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	bm, ok := AsMap(b)
	if !ok || len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		w, ok := bm[k]
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
