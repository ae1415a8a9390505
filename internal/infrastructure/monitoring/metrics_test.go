package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m := NewMetricsWith(prometheus.NewRegistry())
	t.Cleanup(m.Close)
	return m
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordDownloadQueued(true)
		m.RecordDownloadCompleted("DOWNLOAD_FAILURE")
		m.RecordStateTransition("LOADING", "INITIALIZING")
		m.RecordRecovery(true, false)
		NewTimer(m, "runtime", "Run").StopErr(errors.New("boom"))
		m.Close()
	})
}

func TestDownloadMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDownloadQueued(true)
	m.RecordDownloadQueued(false)
	m.RecordDownloadQueued(false)
	m.RecordDownloadCompleted("")
	m.RecordDownloadCompleted("DISK_PERSISTENCE_FAILURE")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadsQueued.WithLabelValues("priority")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DownloadsQueued.WithLabelValues("regular")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadsCompleted.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadsCompleted.WithLabelValues("DISK_PERSISTENCE_FAILURE")))
}

func TestRecoveryMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRecovery(true, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recoveries.WithLabelValues("true", "false")))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMetrics(t)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/downloads/:id/progress", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloads/2001/progress", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/downloads/:id/progress", "200")))
}
