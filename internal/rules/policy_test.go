package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/ir"
)

const samplePolicy = `
strict: true
field_policy: allow
rules:
  - type: widget
    action: write
    effect: allow
  - type: widget
    action: read
    effect: allow
  - type: widget
    action: write
    field: price
    effect: allow
    roles: [pricing]
    message: only pricing may change prices
  - type: widget
    action: delete
    effect: deny
    users: [mallory]
`

func TestParsePolicy_Install(t *testing.T) {
	ctx := context.Background()
	p, err := ParsePolicy([]byte(samplePolicy))
	require.NoError(t, err)
	require.Len(t, p.Statements, 4)

	reg := NewRegistry()
	handles := p.Install(reg)
	assert.Len(t, handles, 4)
	assert.True(t, reg.Strict())
	assert.Equal(t, FieldAllow, reg.FieldPolicy())

	op := writeOp("price")
	assert.NoError(t, reg.CheckType(ctx, op))

	err = reg.CheckChanges(ctx, op)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only pricing may change prices")

	op.Meta = ir.Meta{User: "carol", Roles: []string{"pricing"}}
	assert.NoError(t, reg.CheckChanges(ctx, op))

	// Unlisted fields fall back to the allow field policy.
	assert.NoError(t, reg.CheckChanges(ctx, writeOp("name")))

	del := &ir.Operation{Type: "widget", Action: ir.ActionDelete, Meta: ir.Meta{User: "mallory"}}
	err = reg.CheckType(ctx, del)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget delete denied by policy")

	del.Meta.User = "dave"
	assert.NoError(t, reg.CheckType(ctx, del))

	// Strict mode still denies actions without statements.
	assert.True(t, ir.IsPermissionDenied(reg.CheckType(ctx, &ir.Operation{Type: "widget", Action: ir.ActionQuery})))

	for _, h := range handles {
		assert.True(t, reg.Remove(h))
	}
}

func TestParsePolicy_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "rulez: []",
		"missing type":   "rules: [{action: write, effect: allow}]",
		"unknown action": "rules: [{type: w, action: fly, effect: allow}]",
		"unknown effect": "rules: [{type: w, action: write, effect: maybe}]",
		"field policy":   "field_policy: sometimes",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(doc))
			assert.True(t, ir.IsInvalidInput(err))
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicy), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Len(t, p.Statements, 4)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
