package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the structural edit a Change performs.
type Kind string

const (
	// KindAdd creates a value at a path that did not exist.
	KindAdd Kind = "N"

	// KindUpdate replaces the value at an existing path.
	KindUpdate Kind = "E"

	// KindDelete removes the value at a path.
	KindDelete Kind = "D"

	// KindArray splices an array element; Index and Item describe the edit.
	KindArray Kind = "A"
)

// Valid reports whether k is one of the known change kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAdd, KindUpdate, KindDelete, KindArray:
		return true
	}
	return false
}

// Change is a single structural edit.
//
// Path segments are field names (string) or array indices (int). The JSON
// shape mirrors the common deep-diff wire format so callers can submit
// explicit diffs:
//
//	{"kind":"E","path":["price"],"lhs":10,"rhs":12}
//	{"kind":"A","path":["tags"],"index":2,"item":{"kind":"N","rhs":"new"}}
type Change struct {
	Kind  Kind    `json:"kind"`
	Path  []any   `json:"path,omitempty"`
	LHS   any     `json:"lhs,omitempty"`
	RHS   any     `json:"rhs,omitempty"`
	Index int     `json:"index,omitempty"`
	Item  *Change `json:"item,omitempty"`
}

// Field returns the field name a change targets: its path segments joined
// with ".". Rules keyed by field match against this value.
func (c Change) Field() string {
	return JoinPath(c.Path)
}

// Changeset is an ordered sequence of Changes. Order is significant: a later
// change may depend on an earlier one having been applied.
type Changeset []Change

// Fields returns the distinct field names touched by the changeset in first
// occurrence order.
func (cs Changeset) Fields() []string {
	seen := make(map[string]bool, len(cs))
	var out []string
	for _, c := range cs {
		f := c.Field()
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// JoinPath renders path segments as a dotted field name. Integral numeric
// segments are rendered without a fractional part.
func JoinPath(path []any) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		switch s := seg.(type) {
		case string:
			parts[i] = s
		default:
			if idx, ok := AsIndex(s); ok {
				parts[i] = strconv.Itoa(idx)
			} else {
				parts[i] = fmt.Sprint(s)
			}
		}
	}
	return strings.Join(parts, ".")
}
