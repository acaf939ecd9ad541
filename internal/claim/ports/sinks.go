package ports

//go:generate mockgen -source=sinks.go -destination=mocks/sinks_mocks.go -package=mocks

import (
	"context"

	"rosterclaim/internal/telemetry"
)

// TelemetryEmitter publishes audit events.
type TelemetryEmitter interface {
	Emit(ctx context.Context, event telemetry.Event) error
}

// IndexSyncer schedules an asynchronous resync of a user's search projection.
type IndexSyncer interface {
	// Enqueue never blocks; it reports false when the work was dropped.
	Enqueue(ctx context.Context, userID string) bool
}
