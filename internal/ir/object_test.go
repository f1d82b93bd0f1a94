package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_CloneIsDeep(t *testing.T) {
	orig := Object{
		"name":   "foo",
		"nested": map[string]any{"a": []any{1, 2}},
	}

	cp := orig.Clone()
	cp["name"] = "bar"
	cp["nested"].(map[string]any)["a"].([]any)[0] = 99

	assert.Equal(t, "foo", orig["name"])
	assert.Equal(t, 1, orig["nested"].(map[string]any)["a"].([]any)[0])
}

func TestObject_CloneNil(t *testing.T) {
	var obj Object
	assert.Nil(t, obj.Clone())
}

func TestObject_ID(t *testing.T) {
	obj := Object{"id": "x", "key": "k", "n": 5}
	assert.Equal(t, "x", obj.ID(""))
	assert.Equal(t, "k", obj.ID("key"))
	assert.Equal(t, "", obj.ID("n"))
	assert.Equal(t, "", obj.ID("missing"))
}

func TestObject_Project(t *testing.T) {
	obj := Object{"id": "1", "name": "foo", "price": 3, "secret": "s"}

	view := obj.Project("id", []string{"name", "missing"})
	assert.Equal(t, Object{"id": "1", "name": "foo"}, view)

	full := obj.Project("id", nil)
	assert.Equal(t, obj, full)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"int vs float", 5, float64(5), true},
		{"different numbers", 5, 6, false},
		{"number vs string", 5, "5", false},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"arrays", []any{1, "a"}, []any{float64(1), "a"}, true},
		{"array length", []any{1}, []any{1, 2}, false},
		{"object vs map", Object{"a": 1}, map[string]any{"a": 1.0}, true},
		{"map keys differ", map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{"map vs scalar", map[string]any{}, "x", false},
		{"bools", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestAsIndex(t *testing.T) {
	idx, ok := AsIndex(float64(2))
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = AsIndex(1.5)
	assert.False(t, ok)

	_, ok = AsIndex(-1)
	assert.False(t, ok)

	_, ok = AsIndex("1")
	assert.False(t, ok)

	idx, ok = AsIndex(float64(MaxIndex))
	require.True(t, ok)
	assert.Equal(t, MaxIndex, idx)

	_, ok = AsIndex(float64(MaxIndex) + 1)
	assert.False(t, ok)

	_, ok = AsIndex(1e300)
	assert.False(t, ok)
}

func TestChange_Field(t *testing.T) {
	assert.Equal(t, "price", Change{Path: []any{"price"}}.Field())
	assert.Equal(t, "tags.2.name", Change{Path: []any{"tags", float64(2), "name"}}.Field())
	assert.Equal(t, "", Change{}.Field())
}

func TestChangeset_Fields(t *testing.T) {
	cs := Changeset{
		{Kind: KindUpdate, Path: []any{"a"}},
		{Kind: KindAdd, Path: []any{"b", "c"}},
		{Kind: KindDelete, Path: []any{"a"}},
	}
	assert.Equal(t, []string{"a", "b.c"}, cs.Fields())
}

func TestKind_Valid(t *testing.T) {
	for _, k := range []Kind{KindAdd, KindUpdate, KindDelete, KindArray} {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, Kind("X").Valid())
}

func TestMeta_RoundTrip(t *testing.T) {
	meta := Meta{User: "alice", Roles: []string{"admin"}, Extra: map[string]any{"ip": "1.2.3.4"}}
	back := MetaFromObject(meta.ToObject())
	assert.Equal(t, meta, back)
	assert.True(t, back.HasRole("admin"))
	assert.False(t, back.HasRole("guest"))

	assert.Equal(t, Meta{}, MetaFromObject("not a map"))
}

func TestOperation_WithChange(t *testing.T) {
	op := &Operation{Type: "widget", Action: ActionWrite}
	assert.Equal(t, "", op.Field())

	bound := op.WithChange(Change{Kind: KindUpdate, Path: []any{"price"}})
	assert.Equal(t, "price", bound.Field())
	assert.Nil(t, op.Change, "original operation must not be modified")
}
