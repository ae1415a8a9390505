package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/id"
)

func TestContextRoundTrip(t *testing.T) {
	assert.Equal(t, id.TraceID(""), FromContext(context.Background()))

	traceID := NewTraceID()
	assert.True(t, strings.HasPrefix(traceID.String(), "trc_"))
	assert.Equal(t, traceID, FromContext(WithTraceID(context.Background(), traceID)))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	var seen id.TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(zap.New(core)))
	router.GET("/apps", func(c *gin.Context) {
		seen = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("generates", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apps", nil))

		assert.True(t, strings.HasPrefix(string(seen), "trc_"))
		assert.Equal(t, string(seen), w.Header().Get(Header))
	})

	t.Run("propagates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/apps", nil)
		req.Header.Set(Header, "trc_upstream")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, id.TraceID("trc_upstream"), seen)
		assert.Equal(t, "trc_upstream", w.Header().Get(Header))
	})

	entries := logs.FilterMessage("Request completed").All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "trc_upstream", entries[1].ContextMap()["trace_id"])
}
