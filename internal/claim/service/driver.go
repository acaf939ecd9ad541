package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"rosterclaim/internal/claim/metrics"
	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/claim/ports"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/requestcontext"
)

// Triggers recorded on the context of each unit of work.
const (
	TriggerBatch   = "batch"
	TriggerConsent = "consent"
	TriggerRefresh = "refresh"
)

// ErrBatchRunning is returned by RunBatch while another batch is in progress.
var ErrBatchRunning = fmt.Errorf("batch already running: %w", sentinel.ErrConflict)

// Driver feeds shadow records to the Reconciler, either as a full pass over
// unclaimed records or one record at a time on a consent decision.
type Driver struct {
	shadows     ports.ShadowUserStore
	reconciler  *Reconciler
	locker      ports.KeyLocker
	concurrency int
	callTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	running     atomic.Bool
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithConcurrency sets how many records a batch reconciles at once. Values
// below 2 keep the batch sequential in read order.
func WithConcurrency(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithDriverMetrics(m *metrics.Metrics) DriverOption {
	return func(d *Driver) {
		d.metrics = m
	}
}

func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

func WithDriverCallTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// NewDriver wires a Driver.
func NewDriver(shadows ports.ShadowUserStore, reconciler *Reconciler, locker ports.KeyLocker, opts ...DriverOption) (*Driver, error) {
	if shadows == nil {
		return nil, errors.New("shadow user store is required")
	}
	if reconciler == nil {
		return nil, errors.New("reconciler is required")
	}
	if locker == nil {
		return nil, errors.New("key locker is required")
	}
	d := &Driver{
		shadows:     shadows,
		reconciler:  reconciler,
		locker:      locker,
		concurrency: 1,
		callTimeout: defaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Busy reports whether a batch is in progress.
func (d *Driver) Busy() bool {
	return d.running.Load()
}

// RunBatch reconciles every UNCLAIMED record. Per-record failures are counted
// in the result and never stop the pass; only a failure to read the shadow
// table is returned as an error.
func (d *Driver) RunBatch(ctx context.Context) (models.BatchResult, error) {
	if !d.running.CompareAndSwap(false, true) {
		d.metrics.IncrementBatchBusy()
		return models.BatchResult{}, ErrBatchRunning
	}
	defer d.running.Store(false)

	ctx = requestcontext.WithTrigger(ctx, TriggerBatch)
	if requestcontext.RequestID(ctx) == "" {
		ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	}
	ctx, span := tracer.Start(ctx, "claim.RunBatch")
	defer span.End()

	result := models.BatchResult{StartedAt: time.Now()}
	var mu sync.Mutex
	tally := func(outcome models.Outcome) {
		mu.Lock()
		result.Record(outcome)
		mu.Unlock()
	}

	d.logger.InfoContext(ctx, "shadow user batch started",
		"concurrency", d.concurrency,
		"request_id", requestcontext.RequestID(ctx),
	)

	var err error
	if d.concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.concurrency)
		err = d.shadows.ForEachByStatus(gctx, models.ClaimStatusUnclaimed, func(shadow *models.ShadowUser) error {
			key := shadow.Key()
			g.Go(func() error {
				tally(d.processBatchRecord(gctx, key))
				return nil
			})
			return nil
		})
		if werr := g.Wait(); err == nil {
			err = werr
		}
	} else {
		err = d.shadows.ForEachByStatus(ctx, models.ClaimStatusUnclaimed, func(shadow *models.ShadowUser) error {
			tally(d.processBatchRecord(ctx, shadow.Key()))
			return nil
		})
	}
	result.FinishedAt = time.Now()

	if err != nil {
		err = fmt.Errorf("scan unclaimed shadow users: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.ErrorContext(ctx, "shadow user batch aborted", "scanned", result.Scanned, "error", err)
	}
	span.SetAttributes(
		attribute.Int("batch.scanned", result.Scanned),
		attribute.Int("batch.claimed", result.Claimed),
		attribute.Int("batch.failed", result.Failed),
	)
	d.metrics.ObserveBatch(result, err)
	d.logger.InfoContext(ctx, "shadow user batch finished",
		"scanned", result.Scanned,
		"claimed", result.Claimed,
		"multimatch", result.MultiMatch,
		"no_match", result.NoMatch,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result, err
}

// processBatchRecord reconciles one record under its lock. The record is
// re-read once the lock is held so a concurrent single-record run is observed.
func (d *Driver) processBatchRecord(ctx context.Context, key models.Key) models.Outcome {
	outcome, err := d.withRecord(ctx, key, func(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
		return d.reconciler.Reconcile(ctx, shadow)
	})
	if err != nil {
		if outcome == "" {
			d.logger.WarnContext(ctx, "shadow user skipped", "key", key.String(), "error", err)
		}
		return models.OutcomeFailed
	}
	return outcome
}

// RunSingle handles a consent decision for one record. Declining rejects an
// open record; accepting reconciles an ELIGIBLE one. Any other state is left
// untouched. Unknown keys yield sentinel.ErrNotFound.
func (d *Driver) RunSingle(ctx context.Context, key models.Key, consent bool) (models.Outcome, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	ctx = requestcontext.WithTrigger(ctx, TriggerConsent)
	return d.withRecord(ctx, key, func(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
		if !consent {
			return d.reject(ctx, shadow)
		}
		switch {
		case shadow.ClaimStatus == models.ClaimStatusEligible:
			return d.reconciler.Reconcile(ctx, shadow)
		case shadow.ClaimStatus.IsTerminal():
			return models.OutcomeSkippedTerminal, nil
		default:
			return models.OutcomeIgnored, nil
		}
	})
}

// RefreshSingle re-applies a CLAIMED record to its user.
func (d *Driver) RefreshSingle(ctx context.Context, key models.Key) (models.Outcome, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	ctx = requestcontext.WithTrigger(ctx, TriggerRefresh)
	return d.withRecord(ctx, key, func(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
		if shadow.ClaimStatus != models.ClaimStatusClaimed {
			return models.OutcomeIgnored, nil
		}
		return d.reconciler.RefreshClaimed(ctx, shadow)
	})
}

func (d *Driver) reject(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
	if !shadow.ClaimStatus.IsOpen() {
		if shadow.ClaimStatus.IsTerminal() {
			return models.OutcomeSkippedTerminal, nil
		}
		return models.OutcomeIgnored, nil
	}
	err := callErr(ctx, d.callTimeout, func(cctx context.Context) error {
		return d.shadows.UpdateClaim(cctx, shadow.Key(), models.ClaimUpdate{
			Status:    models.ClaimStatusRejected,
			ProcessID: shadow.ProcessID,
		}, models.OpenStatuses...)
	})
	if err != nil {
		return "", fmt.Errorf("record rejection: %w", err)
	}
	d.metrics.ObserveOutcome(models.OutcomeRejected, time.Now())
	d.logger.InfoContext(ctx, "shadow user rejected",
		"channel", shadow.Channel, "user_ext_id", shadow.UserExtID)
	return models.OutcomeRejected, nil
}

// withRecord locks key, loads the current record and runs fn on it.
func (d *Driver) withRecord(ctx context.Context, key models.Key, fn func(context.Context, *models.ShadowUser) (models.Outcome, error)) (models.Outcome, error) {
	unlock, err := d.locker.Lock(ctx, key.String())
	if err != nil {
		return "", fmt.Errorf("lock shadow user %s: %w", key, err)
	}
	defer unlock()

	shadow, err := call(ctx, d.callTimeout, func(cctx context.Context) (*models.ShadowUser, error) {
		return d.shadows.FindByKey(cctx, key)
	})
	if err != nil {
		return "", fmt.Errorf("load shadow user %s: %w", key, err)
	}
	return fn(ctx, shadow)
}
