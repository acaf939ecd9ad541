// Package scheduler runs the shadow user batch on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"rosterclaim/internal/claim/models"
	"rosterclaim/pkg/platform/sentinel"
)

// BatchRunner runs one batch pass.
type BatchRunner interface {
	RunBatch(ctx context.Context) (models.BatchResult, error)
}

// Scheduler ticks a BatchRunner. A tick that lands while a batch is still
// running is skipped.
type Scheduler struct {
	runner    BatchRunner
	interval  time.Duration
	immediate bool
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithImmediate runs a batch as soon as the scheduler starts.
func WithImmediate() Option {
	return func(s *Scheduler) {
		s.immediate = true
	}
}

// New builds a scheduler. interval must be positive.
func New(runner BatchRunner, interval time.Duration, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("batch runner is required")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	s := &Scheduler{runner: runner, interval: interval, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins ticking until ctx is done or Stop is called. Calling Start on a
// running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if s.immediate {
			s.run(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
	s.logger.InfoContext(ctx, "batch scheduler started", "interval", s.interval)
}

// Stop cancels the loop and waits for an in-flight batch to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("batch scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	_, err := s.runner.RunBatch(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrConflict):
		s.logger.InfoContext(ctx, "previous batch still running, tick skipped")
	case errors.Is(err, context.Canceled):
	default:
		s.logger.ErrorContext(ctx, "scheduled batch failed", "error", err)
	}
}
