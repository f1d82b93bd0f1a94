package changes

import (
	"github.com/roach88/objgate/internal/ir"
)

// Compute derives the changeset that turns current into the desired state
// described by overlay.
//
// overlay may be:
//   - nil: no changes
//   - an ir.Changeset or []ir.Change: used verbatim
//   - a []any of change maps (a JSON-decoded diff): decoded and used verbatim
//   - an ir.Object or map[string]any: deep-merged onto a copy of current,
//     then diffed against current
//
// Anything else is an InvalidInput error.
func Compute(current ir.Object, overlay any) (ir.Changeset, error) {
	switch ov := overlay.(type) {
	case nil:
		return ir.Changeset{}, nil
	case ir.Changeset:
		return verbatim(ov)
	case []ir.Change:
		return verbatim(ov)
	case []any:
		return FromValue(ov)
	}
	ov, ok := ir.AsMap(overlay)
	if !ok {
		return nil, ir.InvalidInput("overlay must be an object or a changeset, got %T", overlay)
	}
	merged := Merge(current, ov)
	cs := Diff(current, merged)
	if cs == nil {
		cs = ir.Changeset{}
	}
	return cs, nil
}

// Merge returns a deep copy of base with overlay merged on top. Nested maps
// merge recursively; arrays and scalars in overlay replace those in base.
func Merge(base ir.Object, overlay map[string]any) ir.Object {
	out := base.Clone()
	if out == nil {
		out = ir.Object{}
	}
	mergeInto(out, overlay)
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := ir.AsMap(v); ok {
			if dm, ok := ir.AsMap(dst[k]); ok {
				mergeInto(dm, sm)
				continue
			}
		}
		dst[k] = ir.CloneValue(v)
	}
}

func verbatim(cs []ir.Change) (ir.Changeset, error) {
	if err := validate(cs); err != nil {
		return nil, err
	}
	return cloneChangeset(cs), nil
}

func cloneChangeset(cs []ir.Change) ir.Changeset {
	out := make(ir.Changeset, len(cs))
	for i, c := range cs {
		out[i] = cloneChange(c)
	}
	return out
}

func cloneChange(c ir.Change) ir.Change {
	out := ir.Change{
		Kind:  c.Kind,
		Path:  clonePath(c.Path),
		LHS:   ir.CloneValue(c.LHS),
		RHS:   ir.CloneValue(c.RHS),
		Index: c.Index,
	}
	if c.Item != nil {
		item := cloneChange(*c.Item)
		out.Item = &item
	}
	return out
}
