package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgate/internal/ir"
)

func TestParseAuthority(t *testing.T) {
	tests := []struct {
		tag  string
		want Authority
	}{
		{"", AuthNone},
		{"get", AuthGet},
		{"get,query", AuthGet | AuthQuery},
		{" Query , search ,", AuthQuery | AuthSearch},
		{"*", AuthAll},
		{"all", AuthAll},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseAuthority(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAuthority("get,delete")
	assert.True(t, ir.IsInvalidInput(err))
}

func TestAuthority_HasAndString(t *testing.T) {
	a := AuthGet | AuthSearch
	assert.True(t, a.Has(AuthGet))
	assert.False(t, a.Has(AuthQuery))
	assert.False(t, a.Has(AuthNone))
	assert.Equal(t, "get,search", a.String())
	assert.Equal(t, "", AuthNone.String())
}

func TestOptions_ID(t *testing.T) {
	assert.Equal(t, "id", Options{}.ID())
	assert.Equal(t, "_key", Options{IDField: "_key"}.ID())
}
