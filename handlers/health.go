package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency for readiness.
type Check func(ctx context.Context) error

// RegisterHealth registers /health (liveness) and /ready. /ready returns 200
// only when every check passes within timeout.
func RegisterHealth(r *gin.Engine, started time.Time, timeout time.Duration, checks map[string]Check) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		ready := true
		deps := gin.H{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				deps[name] = err.Error()
				ready = false
				continue
			}
			deps[name] = "ok"
		}
		body := gin.H{"status": "ready", "deps": deps, "uptime": time.Since(started).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})
}
