package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const loggerKey contextKey = "logger"

// GenerateTraceID returns a random 32-character hex trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewContext returns a context carrying the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the request-scoped logger, falling back to the
// process default when the context carries none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}
