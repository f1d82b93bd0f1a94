package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
)

func openTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func seed(t *testing.T, d *Driver) {
	t.Helper()
	ctx := context.Background()
	for _, obj := range []ir.Object{
		{"id": "w1", "name": "Sprocket", "price": 10, "active": true},
		{"id": "w2", "name": "Gear", "price": 25, "active": false, "dims": map[string]any{"w": 4}},
		{"id": "w3", "name": "Cog", "price": 5, "tags": []any{"tiny"}},
	} {
		require.NoError(t, d.Put(ctx, "widget", obj, driver.Options{}))
	}
	require.NoError(t, d.Put(ctx, "gadget", ir.Object{"id": "g1", "name": "Gear"}, driver.Options{}))
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.db")

	for i := 0; i < 3; i++ {
		d, err := Open(path)
		require.NoError(t, err, "open iteration %d", i)

		var version int
		require.NoError(t, d.db.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, currentSchemaVersion, version)

		var mode string
		require.NoError(t, d.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
		require.NoError(t, d.Close())
	}

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestGetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)

	missing, err := d.Get(ctx, "widget", "w1", driver.Options{})
	require.NoError(t, err)
	assert.Nil(t, missing)

	obj := ir.Object{"id": "w1", "name": "Sprocket", "dims": map[string]any{"w": 1.5}}
	require.NoError(t, d.Put(ctx, "widget", obj, driver.Options{}))

	got, err := d.Get(ctx, "widget", "w1", driver.Options{})
	require.NoError(t, err)
	assert.True(t, ir.Equal(obj, got))

	// Upsert replaces the document.
	require.NoError(t, d.Put(ctx, "widget", ir.Object{"id": "w1", "name": "Gear"}, driver.Options{}))
	got, err = d.Get(ctx, "widget", "w1", driver.Options{View: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"id": "w1", "name": "Gear"}, got)

	// Types are separate namespaces.
	other, err := d.Get(ctx, "gadget", "w1", driver.Options{})
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestPutStoresCanonicalJSON(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	require.NoError(t, d.Put(ctx, "widget", ir.Object{"z": 1, "id": "w1", "a": "<b>"}, driver.Options{}))

	var doc string
	require.NoError(t, d.db.QueryRow(`SELECT doc FROM objects WHERE id = 'w1'`).Scan(&doc))
	assert.Equal(t, `{"a":"<b>","id":"w1","z":1}`, doc)
}

func TestPutRequiresID(t *testing.T) {
	d := openTestDriver(t)
	err := d.Put(context.Background(), "widget", ir.Object{"name": "x"}, driver.Options{})
	assert.True(t, ir.IsInvalidInput(err))
}

func TestDeleteCounts(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	seed(t, d)

	n, err := d.Delete(ctx, "widget", "w1", driver.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.Delete(ctx, "widget", "w1", driver.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	seed(t, d)

	tests := []struct {
		name  string
		query any
		opts  driver.Options
		want  []string
	}{
		{"all by id", nil, driver.Options{}, []string{"w1", "w2", "w3"}},
		{"equality", map[string]any{"name": "Gear"}, driver.Options{}, []string{"w2"}},
		{"bool", map[string]any{"active": true}, driver.Options{}, []string{"w1"}},
		{"compare", map[string]any{"price": map[string]any{"$gt": 5}}, driver.Options{}, []string{"w1", "w2"}},
		{"nested", map[string]any{"dims.w": 4}, driver.Options{}, []string{"w2"}},
		{"array index", map[string]any{"tags.0": "tiny"}, driver.Options{}, []string{"w3"}},
		{"exists", map[string]any{"tags": map[string]any{"$exists": true}}, driver.Options{}, []string{"w3"}},
		{"null matches missing", queryir.Equals{Field: "dims"}, driver.Options{}, []string{"w1", "w3"}},
		{"sorted desc", nil, driver.Options{Sort: queryir.ParseSort("-price")}, []string{"w2", "w1", "w3"}},
		{"limit", queryir.Select{Sort: queryir.ParseSort("price"), Limit: 2}, driver.Options{}, []string{"w3", "w1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objs, err := d.Query(ctx, "widget", tt.query, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(objs))
		})
	}
}

func TestQuery_ViewAndErrors(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	seed(t, d)

	objs, err := d.Query(ctx, "widget", map[string]any{"name": "Cog"}, driver.Options{View: []string{"price"}})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, ir.Object{"id": "w3", "price": 5.0}, objs[0])

	empty, err := d.Query(ctx, "nothing", nil, driver.Options{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = d.Query(ctx, "widget", "name = 'Cog'", driver.Options{})
	assert.True(t, ir.IsInvalidInput(err))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	seed(t, d)

	found, err := d.Search(ctx, "widget", "GEAR", driver.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, ids(found))

	// Field names are not searchable values.
	found, err = d.Search(ctx, "widget", "price", driver.Options{})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = d.Search(ctx, "widget", "", driver.Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func ids(objs []ir.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.ID("id")
	}
	return out
}
