package utils

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process logger; main configures it once at startup.
var Log = logrus.New()

type ctxKey struct{}

// ConfigureLogger sets level and formatter ("json" or "text").
func ConfigureLogger(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	Log.SetOutput(out)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	Log.WithFields(logrus.Fields{
		"module":     strings.ToLower(module),
		"action":     action,
		"request_id": strings.TrimSpace(requestID),
	}).Info(message)
}

// LogError is LogEvent at error level with the error attached.
func LogError(requestID, module, action string, err error) {
	Log.WithFields(logrus.Fields{
		"module":     strings.ToLower(module),
		"action":     action,
		"request_id": strings.TrimSpace(requestID),
	}).WithError(err).Error(action + " failed")
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored by the HTTP middleware, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
