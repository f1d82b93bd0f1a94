package changes

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/objgate/internal/ir"
)

// DecodeChangeset parses a JSON array of changes in deep-diff form.
func DecodeChangeset(data []byte) (ir.Changeset, error) {
	var cs ir.Changeset
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, ir.InvalidInput("decode changeset: %v", err)
	}
	if cs == nil {
		cs = ir.Changeset{}
	}
	normalize(cs)
	if err := validate(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// FromValue converts a JSON-decoded []any of change maps into a Changeset.
func FromValue(v []any) (ir.Changeset, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ir.InvalidInput("encode changeset: %v", err)
	}
	return DecodeChangeset(data)
}

// normalize rewrites integral float path segments as ints so that decoded
// changes are indistinguishable from computed ones.
func normalize(cs ir.Changeset) {
	for i := range cs {
		normalizeChange(&cs[i])
	}
}

func normalizeChange(c *ir.Change) {
	for j, seg := range c.Path {
		if _, isString := seg.(string); isString {
			continue
		}
		if idx, ok := ir.AsIndex(seg); ok {
			c.Path[j] = idx
		}
	}
	if c.Item != nil {
		normalizeChange(c.Item)
	}
}

func validate(cs []ir.Change) error {
	for i, c := range cs {
		if err := validateChange(c, false); err != nil {
			return ir.InvalidInput("change %d: %v", i, err)
		}
	}
	return nil
}

func validateChange(c ir.Change, nested bool) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if nested {
		if c.Kind == ir.KindArray {
			return fmt.Errorf("array item cannot itself be an array splice")
		}
		return nil
	}
	if len(c.Path) == 0 {
		return fmt.Errorf("empty path")
	}
	if _, ok := c.Path[0].(string); !ok {
		return fmt.Errorf("path must start with a field name")
	}
	for _, seg := range c.Path {
		if _, ok := seg.(string); ok {
			continue
		}
		if _, ok := ir.AsIndex(seg); !ok {
			return fmt.Errorf("invalid path segment %v", seg)
		}
	}
	if c.Kind == ir.KindArray {
		if c.Item == nil {
			return fmt.Errorf("array change without item")
		}
		if c.Index < 0 || c.Index > ir.MaxIndex {
			return fmt.Errorf("array index %d out of range", c.Index)
		}
		return validateChange(*c.Item, true)
	}
	return nil
}
