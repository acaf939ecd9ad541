// Package requestcontext provides transport-independent context accessors for
// values set at the edge (HTTP handler, scheduler tick) and read by services.
//
// Usage in services:
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	triggerKey     struct{}
)

// RequestID returns the correlation id attached to the context, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID attaches a correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the time pinned to the context, falling back to time.Now.
// Pinning lets a whole reconciliation stamp the same instant on every row it writes.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now()
}

// WithTime pins the current time for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Trigger names what started the unit of work ("batch", "consent", "refresh").
func Trigger(ctx context.Context) string {
	if v, ok := ctx.Value(triggerKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTrigger records what started the unit of work.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}
