// Package context carries request scoped values used by logging.
package context

import (
	"context"
)

type contextKey string

const (
	contextKeyTraceID   = contextKey("traceID")
	contextKeyBindingID = contextKey("bindingID")
)

// TraceIDFromContext returns the trace ID stored in ctx, if any.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok
}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

// BindingIDFromContext returns the ID of the UI element binding that issued
// the current operation, if any.
func BindingIDFromContext(ctx context.Context) (string, bool) {
	bindingID, ok := ctx.Value(contextKeyBindingID).(string)

	return bindingID, ok
}

// WithBindingID returns a copy of ctx carrying bindingID.
func WithBindingID(ctx context.Context, bindingID string) context.Context {
	return context.WithValue(ctx, contextKeyBindingID, bindingID)
}
