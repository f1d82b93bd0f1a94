package changes

import (
	"fmt"
	"time"

	"github.com/roach88/objgate/internal/ir"
)

// DefaultStampField is the modification timestamp refreshed by Apply.
const DefaultStampField = "updatedAt"

// Options controls Apply.
type Options struct {
	// Strict reports unresolvable paths as InvalidInput instead of creating
	// intermediate structure.
	Strict bool

	// StampField is refreshed after a non-empty changeset is applied, but
	// only when the object already carries it. Defaults to "updatedAt".
	// Set to "-" to disable stamping.
	StampField string

	// Now supplies the stamp time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) stampField() string {
	switch o.StampField {
	case "":
		return DefaultStampField
	case "-":
		return ""
	}
	return o.StampField
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Apply returns a deep copy of current with every change in cs applied in
// order. current is never modified.
func Apply(current ir.Object, cs ir.Changeset, opts Options) (ir.Object, error) {
	out := current.Clone()
	if out == nil {
		out = ir.Object{}
	}
	for i, c := range cs {
		if err := validateChange(c, false); err != nil {
			return nil, ir.InvalidInput("change %d: %v", i, err)
		}
		a := applier{strict: opts.Strict, change: c}
		if _, err := a.edit(out, c.Path, a.leaf); err != nil {
			return nil, err
		}
	}
	if field := opts.stampField(); field != "" && len(cs) > 0 && out.Has(field) {
		out[field] = opts.now().UTC().Format(time.RFC3339Nano)
	}
	return out, nil
}

type applier struct {
	strict bool
	change ir.Change
}

func (a applier) unresolved(format string, args ...any) error {
	return ir.InvalidInput("path %q: %s", ir.JoinPath(a.change.Path), fmt.Sprintf(format, args...))
}

// edit descends along path and calls leaf with the parent container and the
// final segment. It returns node, possibly replaced by a new container.
func (a applier) edit(node any, path []any, leaf func(node any, seg any) (any, error)) (any, error) {
	seg := path[0]
	node, err := a.container(node, seg)
	if err != nil {
		return nil, err
	}
	if len(path) == 1 {
		return leaf(node, seg)
	}
	child, ok := lookup(node, seg)
	if !ok && a.strict {
		return nil, a.unresolved("segment %v does not exist", seg)
	}
	child, err = a.edit(child, path[1:], leaf)
	if err != nil {
		return nil, err
	}
	return a.assign(node, seg, child)
}

// container checks that node can hold seg, creating a fresh container in
// tolerant mode.
func (a applier) container(node any, seg any) (any, error) {
	if _, ok := seg.(string); ok {
		if _, ok := ir.AsMap(node); ok {
			return node, nil
		}
		if a.strict {
			return nil, a.unresolved("expected object at segment %v", seg)
		}
		return map[string]any{}, nil
	}
	if _, ok := node.([]any); ok {
		return node, nil
	}
	if a.strict {
		return nil, a.unresolved("expected array at segment %v", seg)
	}
	return []any{}, nil
}

func (a applier) leaf(node any, seg any) (any, error) {
	c := a.change
	switch c.Kind {
	case ir.KindAdd, ir.KindUpdate:
		if c.Kind == ir.KindUpdate && a.strict {
			if _, ok := lookup(node, seg); !ok {
				return nil, a.unresolved("nothing to update")
			}
		}
		return a.assign(node, seg, ir.CloneValue(c.RHS))
	case ir.KindDelete:
		return a.remove(node, seg)
	case ir.KindArray:
		target, ok := lookup(node, seg)
		arr, isArr := target.([]any)
		if !ok || !isArr {
			if a.strict {
				return nil, a.unresolved("expected array")
			}
			arr = []any{}
		}
		arr, err := a.splice(arr, c.Index, *c.Item)
		if err != nil {
			return nil, err
		}
		return a.assign(node, seg, arr)
	}
	return nil, a.unresolved("unknown kind %q", c.Kind)
}

func (a applier) splice(arr []any, idx int, item ir.Change) ([]any, error) {
	switch item.Kind {
	case ir.KindDelete:
		if idx >= len(arr) {
			if a.strict {
				return nil, a.unresolved("index %d out of range", idx)
			}
			return arr, nil
		}
		return append(arr[:idx], arr[idx+1:]...), nil
	default:
		out, err := a.assign(arr, idx, ir.CloneValue(item.RHS))
		if err != nil {
			return nil, err
		}
		return out.([]any), nil
	}
}

func (a applier) assign(node any, seg any, val any) (any, error) {
	if key, ok := seg.(string); ok {
		m, _ := ir.AsMap(node)
		m[key] = val
		return node, nil
	}
	arr := node.([]any)
	idx, ok := ir.AsIndex(seg)
	switch {
	case !ok:
		return nil, a.unresolved("invalid index %v", seg)
	case idx < len(arr):
		arr[idx] = val
	case idx == len(arr):
		arr = append(arr, val)
	default:
		// Arrays only grow by appending, in either mode.
		return nil, a.unresolved("index %d out of range", idx)
	}
	return arr, nil
}

func (a applier) remove(node any, seg any) (any, error) {
	if _, ok := lookup(node, seg); !ok {
		if a.strict {
			return nil, a.unresolved("nothing to delete")
		}
		return node, nil
	}
	if key, ok := seg.(string); ok {
		m, _ := ir.AsMap(node)
		delete(m, key)
		return node, nil
	}
	arr := node.([]any)
	idx, _ := ir.AsIndex(seg)
	return append(arr[:idx], arr[idx+1:]...), nil
}

// lookup returns the child of node at seg.
func lookup(node any, seg any) (any, bool) {
	if key, ok := seg.(string); ok {
		m, ok := ir.AsMap(node)
		if !ok {
			return nil, false
		}
		v, ok := m[key]
		return v, ok
	}
	arr, ok := node.([]any)
	if !ok {
		return nil, false
	}
	idx, ok := ir.AsIndex(seg)
	if !ok || idx >= len(arr) {
		return nil, false
	}
	return arr[idx], true
}
