package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hotelchat/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveSearch("empty", 3*time.Millisecond)

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	assert.Contains(t, out, "hotelchat_http_requests_total")
	assert.Contains(t, out, `hotelchat_room_searches_total{outcome="empty"}`)
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs strings.Builder
	r := gin.New()
	r.Use(observability.GinMetrics(), observability.GinLogger(zerolog.New(&logs)))
	r.GET("/api/v1/chat/:session_id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/chat/abc", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, logs.String(), `"route":"/api/v1/chat/:session_id"`)
	assert.Contains(t, logs.String(), `"status":204`)
}

func TestNewLoggerLevel(t *testing.T) {
	t.Parallel()

	l := observability.NewLogger("prod", "debug")
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	l = observability.NewLogger("dev", "nonsense")
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
