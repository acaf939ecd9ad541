package telemetry

import (
	"context"
	"log/slog"
	"sync"
)

// LogEmitter writes events to the structured log. It is used when no broker is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log-backed emitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(ctx context.Context, event Event) error {
	l.logger.InfoContext(ctx, "telemetry event",
		"event_id", event.ID,
		"eid", event.Type,
		"object_id", event.Target.ID,
		"object_type", event.Target.Type,
		"object_subtype", event.Target.Subtype,
		"rollup", event.Rollup,
	)
	return nil
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Emit calls return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
