package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/config"
	"github.com/roach88/objgate/internal/engine"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/testutil"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func build(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := Build(context.Background(), cfg, append([]Option{quiet()}, opts...)...)
	require.NoError(t, err)
	return a
}

func TestBuildDefault(t *testing.T) {
	a := build(t, config.Default(), WithIDGenerator(testutil.NewSequentialIDs("w")))
	defer a.Close()

	ctx := context.Background()
	obj, err := a.Engine.Create(ctx, engine.Request{Type: "widget", Overlay: ir.Object{"name": "foo"}})
	require.NoError(t, err)
	assert.Equal(t, "w-0001", obj.ID("id"))

	got, err := a.Engine.Get(ctx, engine.Request{Type: "widget", ID: "w-0001"})
	require.NoError(t, err)
	assert.Equal(t, "foo", got["name"])

	assert.Equal(t, []string{"primary"}, a.Store.Drivers())
	assert.Equal(t, []string{"audit"}, a.Store.LogDrivers())
	assert.Nil(t, a.Verifier)
}

func TestBuildSQLitePersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Drivers = []config.DriverConfig{
		{Name: "primary", Kind: config.KindSQLite, Path: filepath.Join(dir, "objgate.db"), Authority: "get,query,search"},
	}
	cfg.LogDrivers = []config.DriverConfig{
		{Name: "audit", Kind: config.KindSQLite, Path: filepath.Join(dir, "objgate.db"), Authority: "query"},
	}
	ctx := context.Background()

	first := build(t, cfg)
	obj, err := first.Engine.Create(ctx, engine.Request{Type: "widget", Overlay: ir.Object{"name": "a"}})
	require.NoError(t, err)
	id := obj.ID("id")
	require.NoError(t, first.Close())

	second := build(t, cfg)
	defer second.Close()

	got, err := second.Engine.Get(ctx, engine.Request{Type: "widget", ID: id})
	require.NoError(t, err)
	assert.Equal(t, "a", got["name"])

	_, err = second.Engine.Update(ctx, engine.Request{Type: "widget", ID: id, Overlay: ir.Object{"name": "b"}})
	require.NoError(t, err)

	entries, err := second.Engine.GetLog(ctx, engine.Request{Type: "widget", ID: id})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ir.AuditUpdate, entries[0].Action)
	assert.Equal(t, int64(2), entries[0].Seq, "sequence resumes after restart")
}

func TestBuildModelsAndPolicy(t *testing.T) {
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	require.NoError(t, os.Mkdir(models, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(models, "widget.cue"),
		[]byte("package models\n\nwidget: {\n\tprice: number & >=0 | *0\n}\n"), 0o644))
	policy := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte(`
rules:
  - type: widget
    action: write
    field: price
    effect: allow
    roles: [pricing]
`), 0o644))

	cfg := config.Default()
	cfg.Models = models
	cfg.OpenTypes = false
	cfg.Policy = policy
	a := build(t, cfg)
	defer a.Close()
	ctx := context.Background()

	_, err := a.Engine.Create(ctx, engine.Request{Type: "gizmo"})
	assert.True(t, ir.IsInvalidInput(err), "closed registry has no gizmo factory")

	_, err = a.Engine.Create(ctx, engine.Request{Type: "widget", Overlay: ir.Object{"price": -1.0}})
	assert.True(t, ir.IsInvalidInput(err))

	_, err = a.Engine.Create(ctx, engine.Request{Type: "widget", Overlay: ir.Object{"price": 5.0}})
	assert.True(t, ir.IsPermissionDenied(err))

	obj, err := a.Engine.Create(ctx, engine.Request{
		Type:    "widget",
		Overlay: ir.Object{"price": 5.0},
		Meta:    ir.Meta{User: "pat", Roles: []string{"pricing"}},
	})
	require.NoError(t, err)
	assert.True(t, ir.Equal(5, obj["price"]))
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.IDStrategy = "nope"
	_, err := Build(context.Background(), cfg, quiet())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Drivers = append(cfg.Drivers, config.DriverConfig{Name: "second", Kind: config.KindMemory, Authority: "get"})
	_, err = Build(context.Background(), cfg, quiet())
	assert.True(t, ir.IsInvalidInput(err), "two drivers claim get")
}

func TestMeta(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "s3cret"
	a := build(t, cfg, WithClock(func() time.Time { return testutil.Epoch }))
	defer a.Close()

	meta, err := a.Meta("bob", "")
	require.NoError(t, err)
	assert.Equal(t, ir.Meta{User: "bob"}, meta)

	token, err := a.Verifier.Issue(ir.Meta{User: "alice", Roles: []string{"admin"}}, time.Hour)
	require.NoError(t, err)
	meta, err = a.Meta("bob", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", meta.User)

	_, err = a.Meta("", "garbage")
	assert.True(t, ir.IsPermissionDenied(err))

	plain := build(t, config.Default())
	defer plain.Close()
	_, err = plain.Meta("", "token")
	assert.True(t, ir.IsInvalidInput(err))
}
