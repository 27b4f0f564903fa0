package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLogger_TimestampKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	logger.AnalysisLogger("octocat", "github", 44, "Strong Shortlist", 120*time.Millisecond, true)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
	assert.Equal(t, "Analysis Completed", entry["msg"])
	assert.Equal(t, "octocat", entry["login"])
	assert.Equal(t, "github", entry["source"])
	assert.Equal(t, float64(44), entry["total_score"])
	assert.Equal(t, true, entry["ai_offline"])
}

func TestLogger_DebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	logger.CacheLogger("get", "report:octocat", true, 3)
	assert.Empty(t, buf.String())
}

func TestMetrics_Stats(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.IncrementCacheMiss()
	m.RecordNarrative(true)
	m.RecordNarrative(false)
	m.RecordExternalAPIRequest("GitHub", true)
	m.RecordExternalAPIRequest("GitHub", false)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, float64(50), stats["error_rate_percent"])
	assert.InDelta(t, 33.33, stats["cache_hit_rate_percent"], 0.01)
	assert.Equal(t, int64(2), stats["narrative_calls"])
	assert.Equal(t, int64(1), stats["narrative_fallbacks"])

	github := stats["external_api_stats"].(map[string]interface{})["GitHub"].(map[string]interface{})
	assert.Equal(t, int64(2), github["requests"])
	assert.Equal(t, float64(50), github["error_rate"])

	m.Reset()
	assert.Equal(t, int64(0), m.GetStats()["total_requests"])
}

func TestMetrics_Percentiles(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(50))

	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.Equal(t, 100*time.Millisecond, m.GetPercentileResponseTime(100))
}

func TestMonitoringMiddleware(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewMetrics()
	router := gin.New()
	router.Use(MonitoringMiddleware(metrics, NewLoggerTo(&buf, slog.LevelInfo)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusBadGateway)
	})

	for _, path := range []string{"/ok", "/fail"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, int64(2), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Equal(t, map[int]int64{200: 1, 502: 1}, metrics.GetStatusCodeDistribution())
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestSecurityMonitoringMiddleware(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(SecurityMonitoringMiddleware(NewLoggerTo(&buf, slog.LevelInfo)))
	router.GET("/api/history/:username", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/octo?q=1%20UNION%20SELECT%20x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "potential_sql_injection")

	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/api/history/octo", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 sqlmap/1.7")
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, buf.String(), "suspicious_user_agent")

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/history/octo", nil))
	assert.False(t, strings.Contains(buf.String(), "Security Event"))
}
