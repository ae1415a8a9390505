package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferSuccess(t *testing.T) {
	payload := strings.Repeat("a", 100*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "package2001")
	c := New(Options{})

	result := c.Transfer(context.Background(), server.URL, dest, 0)
	require.Equal(t, Success, result)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Equal(t, uint8(100), c.Progress())
	assert.Equal(t, http.StatusOK, c.StatusCode())
}

func TestTransferNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "package2002")
	c := New(Options{})

	result := c.Transfer(context.Background(), server.URL, dest, 0)
	assert.Equal(t, HTTPError, result)
	assert.Equal(t, http.StatusNotFound, c.StatusCode())

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "partial file should be removed")
}

func TestTransferServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(Options{})
	result := c.Transfer(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 0)
	assert.Equal(t, HTTPError, result)
	assert.Equal(t, http.StatusServiceUnavailable, c.StatusCode())
}

func TestTransferDiskError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "missing", "dir", "package2003")
	c := New(Options{})

	assert.Equal(t, DiskError, c.Transfer(context.Background(), server.URL, dest, 0))
}

func TestTransferUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(Options{})
	assert.Equal(t, HTTPError, c.Transfer(context.Background(), url, filepath.Join(t.TempDir(), "f"), 0))
	assert.Equal(t, 0, c.StatusCode())
}

func TestTransferCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
		_, _ = w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "package2004")
	c := New(Options{})

	done := make(chan Result, 1)
	go func() {
		done <- c.Transfer(context.Background(), server.URL, dest, 0)
	}()

	require.Eventually(t, func() bool { return c.Progress() == 50 }, 2*time.Second, 5*time.Millisecond)
	c.Cancel()

	select {
	case result := <-done:
		assert.Equal(t, HTTPError, result)
	case <-time.After(2 * time.Second):
		t.Fatal("transfer did not stop after cancel")
	}

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestTransferPauseResume(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
		_, _ = w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		<-release
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	c := New(Options{})
	done := make(chan Result, 1)
	go func() {
		done <- c.Transfer(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 0)
	}()

	require.Eventually(t, func() bool { return c.Progress() == 50 }, 2*time.Second, 5*time.Millisecond)
	c.Pause()
	close(release)

	select {
	case <-done:
		t.Fatal("paused transfer completed")
	case <-time.After(100 * time.Millisecond):
	}

	c.Resume()
	select {
	case result := <-done:
		assert.Equal(t, Success, result)
	case <-time.After(2 * time.Second):
		t.Fatal("transfer did not resume")
	}
}

func TestTransferRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 3*1024))
	}))
	defer server.Close()

	c := New(Options{})
	start := time.Now()
	result := c.Transfer(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 1024)

	assert.Equal(t, Success, result)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(Options{TripAfter: 2, Cooldown: time.Minute})
	dir := t.TempDir()

	c.Transfer(context.Background(), url, filepath.Join(dir, "a"), 0)
	c.Transfer(context.Background(), url, filepath.Join(dir, "b"), 0)
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	assert.Equal(t, HTTPError, c.Transfer(context.Background(), url, filepath.Join(dir, "c"), 0))
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := New(Options{TripAfter: 1})
	for i := 0; i < 3; i++ {
		c.Transfer(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 0)
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "http_error", HTTPError.String())
	assert.Equal(t, "disk_error", DiskError.String())
}

func TestPauseHoldsForNextTransfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	c := New(Options{})
	c.Pause()

	done := make(chan Result, 1)
	go func() {
		done <- c.Transfer(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 0)
	}()

	select {
	case <-done:
		t.Fatal("transfer started while paused completed")
	case <-time.After(100 * time.Millisecond):
	}

	c.Resume()
	select {
	case result := <-done:
		assert.Equal(t, Success, result)
	case <-time.After(2 * time.Second):
		t.Fatal("transfer did not resume")
	}
}

func TestCancelHoldsUntilReset(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	c := New(Options{})
	dir := t.TempDir()
	c.Cancel()

	assert.Equal(t, HTTPError, c.Transfer(context.Background(), server.URL, filepath.Join(dir, "a"), 0))
	assert.Equal(t, int32(0), hits.Load())

	c.Reset()
	assert.Equal(t, Success, c.Transfer(context.Background(), server.URL, filepath.Join(dir, "b"), 0))
	assert.Equal(t, int32(1), hits.Load())
}

func TestResetReleasesPause(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	c := New(Options{})
	c.Pause()
	c.Reset()
	assert.Equal(t, Success, c.Transfer(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 0))
}
