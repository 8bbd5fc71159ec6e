// Package tracing generates and threads the per-invocation request id:
// every tool call and every CLI invocation gets a fresh, globally
// unique id that tags the envelope it returns; for tool calls it also
// tags the call's log record.
package tracing

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

var requestIDKey = contextKey{}

// NewRequestID returns a fresh globally-unique request id.
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequestID returns a context carrying id, retrievable with
// RequestID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request id threaded by WithRequestID, or ""
// if none was set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
