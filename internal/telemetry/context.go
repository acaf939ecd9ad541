package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rosterclaim/pkg/platform/sentinel"
)

// ProcessStore reads the telemetry context stored with a bulk-upload process.
type ProcessStore interface {
	TelemetryContext(ctx context.Context, processID string) (map[string]string, error)
}

type stringCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

// ContextLookup caches process telemetry contexts. Unknown or blank process ids
// yield an empty context and are not cached.
type ContextLookup struct {
	store ProcessStore
	cache stringCache
}

// NewContextLookup constructs a cached lookup.
func NewContextLookup(store ProcessStore, cache stringCache) *ContextLookup {
	return &ContextLookup{store: store, cache: cache}
}

func (l *ContextLookup) TelemetryContext(ctx context.Context, processID string) (map[string]string, error) {
	if processID == "" {
		return map[string]string{}, nil
	}
	if raw, err := l.cache.Get(ctx, processID); err == nil {
		return decodeContext(raw)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("read telemetry context cache: %w", err)
	}

	tc, err := l.store.TelemetryContext(ctx, processID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && len(tc) == 0) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load telemetry context for process %s: %w", processID, err)
	}

	raw, err := json.Marshal(tc)
	if err != nil {
		return nil, fmt.Errorf("encode telemetry context: %w", err)
	}
	cached, err := l.cache.SetIfAbsent(ctx, processID, string(raw))
	if err != nil {
		return nil, fmt.Errorf("write telemetry context cache: %w", err)
	}
	return decodeContext(cached)
}

func decodeContext(raw string) (map[string]string, error) {
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode telemetry context: %w", err)
	}
	return out, nil
}
