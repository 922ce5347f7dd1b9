package telemetry_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/telemetry"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	file := filepath.Join(t.TempDir(), "codexa.log")
	closer, err := telemetry.SetupLogger(telemetry.LogConfig{Level: "debug", File: file})
	require.NoError(t, err)

	slog.Debug("hello", "quiz_id", 1)
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"quiz_id":1`)
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	_, err := telemetry.SetupLogger(telemetry.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestHTTPMiddleware_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(telemetry.HTTPMiddleware())
	e.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	t.Run("generated when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Len(t, w.Header().Get(telemetry.RequestIDHeader), 36)
	})

	t.Run("propagated when present", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set(telemetry.RequestIDHeader, "req-1")

		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		assert.Equal(t, "req-1", w.Header().Get(telemetry.RequestIDHeader))
	})
}
