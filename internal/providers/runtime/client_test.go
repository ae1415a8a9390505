package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/tracing"
)

type recorded struct {
	method  string
	path    string
	traceID string
	body    map[string]interface{}
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, traceID: r.Header.Get(tracing.Header)}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestRunPostsRequest(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL, time.Second, nil)

	err := c.Run(context.Background(), lifecycle.RunRequest{
		AppID:         "com.example.app",
		AppInstanceID: "inst-1",
		Intent:        "open",
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "/containers", got[0].path)
	assert.Equal(t, "com.example.app", got[0].body["appId"])
	assert.Equal(t, "inst-1", got[0].body["appInstanceId"])
	assert.Equal(t, "open", got[0].body["intent"])
}

func TestControlPaths(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL, time.Second, nil)
	ctx := context.Background()

	ops := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"terminate", c.Terminate},
		{"kill", c.Kill},
		{"hibernate", c.Hibernate},
		{"wake", c.Wake},
		{"suspend", c.Suspend},
		{"resume", c.Resume},
	}
	for _, op := range ops {
		require.NoError(t, op.fn(ctx, "inst-1"), op.name)
	}

	got := calls()
	require.Len(t, got, len(ops))
	for i, op := range ops {
		assert.Equal(t, "/containers/inst-1/"+op.name, got[i].path)
	}
}

func TestTraceIDForwarded(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL, time.Second, nil)

	ctx := tracing.WithTraceID(context.Background(), "trc_abc")
	require.NoError(t, c.Hibernate(ctx, "inst-1"))
	require.NoError(t, c.Wake(context.Background(), "inst-1"))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, "trc_abc", got[0].traceID)
	assert.Empty(t, got[1].traceID)
}

func TestEmptyInstanceID(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL, time.Second, nil)

	assert.Error(t, c.Kill(context.Background(), ""))
	assert.Empty(t, calls())
}

func TestRejectedCall(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success":false,"error":"no such container"}`)
	c := New(srv.URL, time.Second, nil)

	err := c.Suspend(context.Background(), "inst-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such container")
}

func TestHTTPError(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `{"success":false,"error":"boom"}`)
	c := New(srv.URL, time.Second, nil)

	err := c.Wake(context.Background(), "inst-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	srv, calls := newServer(t, http.StatusServiceUnavailable, `{"success":false}`)
	c := New(srv.URL, time.Second, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.Error(t, c.Kill(ctx, "inst-1"))
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	err := c.Kill(ctx, "inst-1")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, calls(), 5)
}
