package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, id1.String(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SessionPrefix, EventPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		parts := strings.Split(id, "_")
		require.Len(t, parts, 2, "prefixed ID should be prefix_ulid: %s", id)
		assert.Equal(t, prefix, parts[0])
		assert.True(t, IsValid(parts[1]))
	}
}

func TestTypedIDs(t *testing.T) {
	gen := NewGenerator()

	assert.True(t, strings.HasPrefix(gen.NewSessionID().String(), "sess_"))
	assert.True(t, strings.HasPrefix(gen.NewEventID().String(), "evt_"))
	assert.True(t, strings.HasPrefix(gen.NewTraceID().String(), "trc_"))

	instance := NewAppInstanceID()
	assert.True(t, IsValidInstanceID(instance.String()))
	assert.NotEqual(t, instance, NewAppInstanceID())
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewGenerator().GenerateString()))

	for _, bad := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		assert.False(t, IsValid(bad), bad)
	}
	assert.False(t, IsValidInstanceID("not-a-uuid"))
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	id := NewGenerator().GenerateString()
	after := time.Now()

	ts, err := Timestamp(id)
	require.NoError(t, err)

	// ULID timestamps have millisecond precision
	assert.GreaterOrEqual(t, ts.UnixMilli(), before.UnixMilli())
	assert.LessOrEqual(t, ts.UnixMilli(), after.UnixMilli())
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateString()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[string]bool)
	for id := range idChan {
		assert.False(t, seen[id], "duplicate ID: %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*idsPerGoroutine)
}
