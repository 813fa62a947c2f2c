package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/docindex/docindex/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimitMiddleware_FixedWindow(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(client, 0, 1, time.Minute))
	r.DELETE("/delete-by-keyword", func(c *gin.Context) { c.JSON(200, gin.H{"deleted": 0}) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/delete-by-keyword?keyword=x", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	rejectedBefore := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis"))
	require.Equal(t, http.StatusOK, send().Code)

	// the counter lives under the service prefix, keyed by client IP and window
	var counters []string
	for _, k := range m.Keys() {
		if strings.HasPrefix(k, "docindex:rl:ip:198.51.100.7:") {
			counters = append(counters, k)
		}
	}
	require.Len(t, counters, 1)

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Rate limit exceeded", body["message"])
	require.Equal(t, rejectedBefore+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis")))

	// window keys expire, so the client is admitted again
	m.FastForward(61 * time.Second)
	require.Equal(t, http.StatusOK, send().Code)
}

func TestRedisRateLimitMiddleware_FailsClosedWithoutRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	m.Close()

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(client, 1, 5, time.Second))
	r.GET("/search", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Rate limit check failed")
}
