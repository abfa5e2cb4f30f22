package middleware

import (
	"time"

	"staybackend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
