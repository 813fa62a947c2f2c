package middleware

import (
	"strconv"

	"github.com/docindex/docindex/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// RequestMetrics returns a Gin middleware counting requests per matched route and status code.
// Unmatched routes are recorded under "unmatched" to keep label cardinality bounded.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
