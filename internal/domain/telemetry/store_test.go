package telemetry

import (
	"testing"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type published struct {
	marker  string
	payload string
}

type capturePublisher struct {
	sent []published
}

func (c *capturePublisher) Publish(marker, payload string) error {
	c.sent = append(c.sent, published{marker: marker, payload: payload})
	return nil
}

func TestRecordAndPublish(t *testing.T) {
	pub := &capturePublisher{}
	store := NewStore(nil, pub, nil)

	require.NoError(t, store.Record("com.test.app", `{"appId":"com.test.app","startTime":100}`, MarkerLaunchTime))
	require.NoError(t, store.Record("com.test.app", `{"endTime":250,"secret":"x"}`, MarkerLaunchTime))
	require.NoError(t, store.Publish("com.test.app", MarkerLaunchTime))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, MarkerLaunchTime, pub.sent[0].marker)
	assert.JSONEq(t, `{"appId":"com.test.app","startTime":100,"endTime":250}`, pub.sent[0].payload)
	assert.Equal(t, 0, store.Pending())
}

func TestKeysDoNotCollide(t *testing.T) {
	pub := &capturePublisher{}
	store := NewStore(map[string][]string{
		"c":   {"v"},
		"b:c": {"v"},
	}, pub, nil)

	// both pairs join to "a:b:c"
	require.NoError(t, store.Record("a:b", `{"v":1}`, "c"))
	require.NoError(t, store.Record("a", `{"v":2}`, "b:c"))
	assert.Equal(t, 2, store.Pending())

	require.NoError(t, store.Publish("a:b", "c"))
	assert.JSONEq(t, `{"v":1}`, pub.sent[0].payload)
}

func TestRecordErrors(t *testing.T) {
	store := NewStore(nil, &capturePublisher{}, nil)

	assert.ErrorIs(t, store.Record("", `{}`, MarkerLaunchTime), types.ErrInvalidInput)
	assert.ErrorIs(t, store.Record("id", `{}`, "NoSuchMarker"), types.ErrInvalidInput)
	assert.ErrorIs(t, store.Record("id", `[1,2]`, MarkerLaunchTime), types.ErrInvalidInput)
}

func TestPublishUnknownKey(t *testing.T) {
	store := NewStore(nil, &capturePublisher{}, nil)
	assert.ErrorIs(t, store.Publish("id", MarkerLaunchTime), types.ErrNotFound)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := NewStore(nil, nil, zap.New(core))

	require.NoError(t, store.Record("id", `{"appId":"id"}`, MarkerCloseTime))
	require.NoError(t, store.Publish("id", MarkerCloseTime))

	entries := logs.FilterMessage("telemetry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, MarkerCloseTime, entries[0].ContextMap()["marker"])
}
