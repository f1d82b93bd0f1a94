package changes

import (
	"github.com/roach88/objgate/internal/ir"
)

// Diff computes the minimal structural changeset turning lhs into rhs.
// An empty changeset means the two objects are equal.
func Diff(lhs, rhs ir.Object) ir.Changeset {
	var cs ir.Changeset
	diffMaps(&cs, nil, lhs, rhs)
	return cs
}

func diffValue(cs *ir.Changeset, path []any, lhs, rhs any) {
	if lm, ok := ir.AsMap(lhs); ok {
		if rm, ok := ir.AsMap(rhs); ok {
			diffMaps(cs, path, lm, rm)
			return
		}
	}
	if la, ok := lhs.([]any); ok {
		if ra, ok := rhs.([]any); ok {
			diffArrays(cs, path, la, ra)
			return
		}
	}
	if !ir.Equal(lhs, rhs) {
		*cs = append(*cs, ir.Change{
			Kind: ir.KindUpdate,
			Path: clonePath(path),
			LHS:  ir.CloneValue(lhs),
			RHS:  ir.CloneValue(rhs),
		})
	}
}

func diffMaps(cs *ir.Changeset, path []any, lhs, rhs map[string]any) {
	for _, k := range ir.Object(lhs).SortedKeys() {
		rv, ok := rhs[k]
		if !ok {
			*cs = append(*cs, ir.Change{
				Kind: ir.KindDelete,
				Path: appendPath(path, k),
				LHS:  ir.CloneValue(lhs[k]),
			})
			continue
		}
		diffValue(cs, appendPath(path, k), lhs[k], rv)
	}
	for _, k := range ir.Object(rhs).SortedKeys() {
		if _, ok := lhs[k]; ok {
			continue
		}
		*cs = append(*cs, ir.Change{
			Kind: ir.KindAdd,
			Path: appendPath(path, k),
			RHS:  ir.CloneValue(rhs[k]),
		})
	}
}

func diffArrays(cs *ir.Changeset, path []any, lhs, rhs []any) {
	common := min(len(lhs), len(rhs))

	// Removals from the end first so indices stay valid while splicing.
	for i := len(lhs) - 1; i >= common; i-- {
		*cs = append(*cs, ir.Change{
			Kind:  ir.KindArray,
			Path:  clonePath(path),
			Index: i,
			Item:  &ir.Change{Kind: ir.KindDelete, LHS: ir.CloneValue(lhs[i])},
		})
	}
	for i := 0; i < common; i++ {
		diffValue(cs, appendPath(path, i), lhs[i], rhs[i])
	}
	for i := common; i < len(rhs); i++ {
		*cs = append(*cs, ir.Change{
			Kind:  ir.KindArray,
			Path:  clonePath(path),
			Index: i,
			Item:  &ir.Change{Kind: ir.KindAdd, RHS: ir.CloneValue(rhs[i])},
		})
	}
}

func appendPath(path []any, seg any) []any {
	out := make([]any, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func clonePath(path []any) []any {
	if path == nil {
		return nil
	}
	out := make([]any, len(path))
	copy(out, path)
	return out
}
