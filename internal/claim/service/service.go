// Package service reconciles shadow roster records with the canonical user
// directory and drives batch and single-record claim runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"rosterclaim/internal/claim/metrics"
	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/claim/ports"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/requestcontext"
)

var tracer = otel.Tracer("rosterclaim/internal/claim/service")

const defaultCallTimeout = 10 * time.Second

// CandidateFinder looks up canonical users matching a shadow record.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, shadow *models.ShadowUser) ([]models.Candidate, error)
}

// OrgResolver maps channels and roster organisation ids to organisation ids.
type OrgResolver interface {
	ResolveOrgID(ctx context.Context, channel, externalOrgID string) (string, error)
	ResolveRootOrgID(ctx context.Context, channel string) (string, error)
	HashTagID(ctx context.Context, orgID string) (string, error)
}

// Stores groups the tables the reconciler reads and writes.
type Stores struct {
	Shadows     ports.ShadowUserStore
	Users       ports.UserStore
	Memberships ports.MembershipStore
	Links       ports.ExternalIdentityStore
	Index       ports.SearchIndex
}

func (s Stores) validate() error {
	switch {
	case s.Shadows == nil:
		return errors.New("shadow user store is required")
	case s.Users == nil:
		return errors.New("user store is required")
	case s.Memberships == nil:
		return errors.New("membership store is required")
	case s.Links == nil:
		return errors.New("external identity store is required")
	case s.Index == nil:
		return errors.New("search index is required")
	}
	return nil
}

// Reconciler applies the claim policy to one shadow record at a time. It holds
// no per-record state and is safe for concurrent use on distinct keys.
type Reconciler struct {
	stores     Stores
	identities CandidateFinder
	orgs       OrgResolver

	telemetry   ports.TelemetryEmitter
	contexts    ports.ProcessContextLookup
	syncer      ports.IndexSyncer
	metrics     *metrics.Metrics
	logger      *slog.Logger
	callTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithTelemetry enables audit events, enriched with the upload process context.
func WithTelemetry(emitter ports.TelemetryEmitter, contexts ports.ProcessContextLookup) Option {
	return func(r *Reconciler) {
		r.telemetry = emitter
		r.contexts = contexts
	}
}

// WithIndexSyncer schedules index resyncs for claimed users.
func WithIndexSyncer(syncer ports.IndexSyncer) Option {
	return func(r *Reconciler) {
		r.syncer = syncer
	}
}

// WithCallTimeout bounds every store, index and resolver call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithClock overrides the time source. Without it the time pinned on the
// context is used.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides how membership ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(r *Reconciler) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewReconciler wires a Reconciler. Stores, identities and orgs are required.
func NewReconciler(stores Stores, identities CandidateFinder, orgs OrgResolver, opts ...Option) (*Reconciler, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	if identities == nil {
		return nil, errors.New("identity resolver is required")
	}
	if orgs == nil {
		return nil, errors.New("organisation resolver is required")
	}
	r := &Reconciler{
		stores:      stores,
		identities:  identities,
		orgs:        orgs,
		logger:      slog.Default(),
		callTimeout: defaultCallTimeout,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reconciler) timestamp(ctx context.Context) time.Time {
	if r.now != nil {
		return r.now()
	}
	return requestcontext.Now(ctx)
}

// call runs fn under the per-call timeout. A timeout is reported as an
// unavailable dependency unless the parent context itself ended.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(cctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return v, err
}

func callErr(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := call(ctx, timeout, func(cctx context.Context) (struct{}, error) {
		return struct{}{}, fn(cctx)
	})
	return err
}
