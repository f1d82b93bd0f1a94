package queryir

import (
	"slices"
	"strings"

	"github.com/roach88/objgate/internal/ir"
)

// ParseSort parses sort specifications such as "name", "+name" or "-seq".
// Empty specifications are skipped.
func ParseSort(specs ...string) []SortKey {
	var keys []SortKey
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "", part == "-", part == "+":
				continue
			case strings.HasPrefix(part, "-"):
				keys = append(keys, SortKey{Field: part[1:], Desc: true})
			case strings.HasPrefix(part, "+"):
				keys = append(keys, SortKey{Field: part[1:]})
			default:
				keys = append(keys, SortKey{Field: part})
			}
		}
	}
	return keys
}

// SortObjects sorts objs in place by keys, breaking ties by idField
// ascending so the order is deterministic.
func SortObjects(objs []ir.Object, keys []SortKey, idField string) {
	if idField == "" {
		idField = ir.DefaultIDField
	}
	slices.SortStableFunc(objs, func(a, b ir.Object) int {
		for _, k := range keys {
			av, _ := Lookup(a, k.Field)
			bv, _ := Lookup(b, k.Field)
			if c := CompareValues(av, bv); c != 0 {
				if k.Desc {
					return -c
				}
				return c
			}
		}
		return strings.Compare(a.ID(idField), b.ID(idField))
	})
}
