package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want zapcore.Level
	}{
		{"production default level", Config{OutputPaths: []string{"stderr"}}, zapcore.InfoLevel},
		{"production debug", Config{Level: "debug", OutputPaths: []string{"stderr"}}, zapcore.DebugLevel},
		{"development warn", Config{Level: "warn", Development: true, OutputPaths: []string{"stderr"}}, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.Level.Level())
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	logger := NewNop()
	assert.NotNil(t, logger.Component("downloads"))
}

func TestLevelChangesOverHTTP(t *testing.T) {
	logger, err := New(Config{Level: "info", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/log/level", strings.NewReader(`{"level":"debug"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	logger.Level.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, zapcore.DebugLevel, logger.Level.Level())
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
