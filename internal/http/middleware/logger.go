package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger writes one structured line per request including request_id.
func Logger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"request_id": GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": float64(latency.Microseconds()) / 1000.0,
			"ip":         c.ClientIP(),
		})
		if actor, ok := ActorFrom(c); ok && actor.UserID > 0 {
			entry = entry.WithField("user_id", actor.UserID)
		}

		switch {
		case status >= 500:
			entry.Error("[HTTP]")
		case status >= 400:
			entry.Warn("[HTTP]")
		default:
			entry.Info("[HTTP]")
		}
	}
}
