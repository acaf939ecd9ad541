// Package process reads bulk-upload process records.
package process

import (
	"context"
	"sync"

	"rosterclaim/pkg/platform/sentinel"
)

// InMemory is a map-backed process table.
type InMemory struct {
	mu       sync.RWMutex
	contexts map[string]map[string]string
}

// NewInMemory creates an empty process table.
func NewInMemory() *InMemory {
	return &InMemory{contexts: make(map[string]map[string]string)}
}

// Save records the telemetry context of a process.
func (s *InMemory) Save(_ context.Context, processID string, telemetryContext map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[processID] = copyContext(telemetryContext)
	return nil
}

func (s *InMemory) TelemetryContext(_ context.Context, processID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tc, ok := s.contexts[processID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyContext(tc), nil
}

func copyContext(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
