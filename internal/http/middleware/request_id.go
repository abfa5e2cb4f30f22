package middleware

import (
	"strings"

	"staybackend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestID ensures every request has an ID for tracing and logs.
// The id is also stored on the request context so services can log it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.Request.Header.Get(requestIDHeader))
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Request = c.Request.WithContext(utils.WithRequestID(c.Request.Context(), rid))
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID extracts request_id from gin context when available.
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
