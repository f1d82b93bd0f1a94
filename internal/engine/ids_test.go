package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	assert.Len(t, id, 36)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id generated")
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestULIDGenerator(t *testing.T) {
	gen := ULIDGenerator{}
	a, b := gen.Generate(), gen.Generate()

	assert.Len(t, a, 26)
	_, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("w-1", "w-2")

	assert.Equal(t, "w-1", gen.Generate())
	assert.Equal(t, "w-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestIDGeneratorFunc(t *testing.T) {
	var gen IDGenerator = IDGeneratorFunc(func() string { return "fixed" })
	assert.Equal(t, "fixed", gen.Generate())
}
