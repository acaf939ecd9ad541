// Package resync rebuilds the search projection of users the claim engine has
// touched. Work is queued in memory and applied by a small worker pool; the
// primary store stays the source of truth, so dropped work only delays the index.
package resync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rosterclaim/internal/claim/metrics"
	"rosterclaim/internal/claim/ports"
	"rosterclaim/internal/search"
	"rosterclaim/pkg/platform/circuit"
	"rosterclaim/pkg/platform/sentinel"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 1024
	defaultCallTimeout = 5 * time.Second
	defaultBackoff     = 2 * time.Second
)

// Result labels recorded on the resync metric.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
	ResultSkipped = "skipped"
)

// Resyncer implements ports.IndexSyncer.
type Resyncer struct {
	users       ports.UserStore
	memberships ports.MembershipStore
	index       ports.SearchIndex

	queue       chan string
	workers     int
	callTimeout time.Duration
	backoff     time.Duration
	breaker     *circuit.Breaker
	metrics     *metrics.Metrics
	logger      *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Resyncer.
type Option func(*Resyncer)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(r *Resyncer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithQueueSize bounds the number of pending user ids.
func WithQueueSize(n int) Option {
	return func(r *Resyncer) {
		if n > 0 {
			r.queue = make(chan string, n)
		}
	}
}

// WithCallTimeout bounds each store and index call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resyncer) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithBackoff sets how long a worker pauses while the index circuit is open.
func WithBackoff(d time.Duration) Option {
	return func(r *Resyncer) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithBreaker replaces the default index circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Resyncer) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resyncer) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resyncer) {
		r.logger = logger
	}
}

// New wires a Resyncer. Call Start to run its workers.
func New(users ports.UserStore, memberships ports.MembershipStore, index ports.SearchIndex, opts ...Option) (*Resyncer, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if memberships == nil {
		return nil, errors.New("membership store is required")
	}
	if index == nil {
		return nil, errors.New("search index is required")
	}
	r := &Resyncer{
		users:       users,
		memberships: memberships,
		index:       index,
		queue:       make(chan string, defaultQueueSize),
		workers:     defaultWorkers,
		callTimeout: defaultCallTimeout,
		backoff:     defaultBackoff,
		breaker:     circuit.New("search-index"),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Enqueue schedules userID without blocking. A full queue drops the work.
func (r *Resyncer) Enqueue(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	select {
	case r.queue <- userID:
		r.metrics.SetResyncQueueDepth(len(r.queue))
		return true
	default:
		r.metrics.IncrementResync(ResultDropped)
		r.logger.WarnContext(ctx, "index resync queue full, dropping", "user_id", userID)
		return false
	}
}

// Start runs the workers until ctx is done. Wait blocks until they exit.
func (r *Resyncer) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.work(ctx)
		}()
	}
}

// Wait blocks until every worker started by Start has returned.
func (r *Resyncer) Wait() {
	r.wg.Wait()
}

// Pending reports how many user ids are queued.
func (r *Resyncer) Pending() int {
	return len(r.queue)
}

func (r *Resyncer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case userID := <-r.queue:
			r.metrics.SetResyncQueueDepth(len(r.queue))
			if open := r.process(ctx, userID); open && r.backoff > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(r.backoff):
				}
			}
		}
	}
}

// process syncs one user and reports whether the index circuit is open afterwards.
func (r *Resyncer) process(ctx context.Context, userID string) bool {
	err := r.Sync(ctx, userID)
	switch {
	case err == nil:
		r.metrics.IncrementResync(ResultOK)
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.logger.InfoContext(ctx, "search index circuit closed", "breaker", r.breaker.Name())
		}
		return false
	case errors.Is(err, sentinel.ErrNotFound):
		r.metrics.IncrementResync(ResultSkipped)
		r.logger.WarnContext(ctx, "index resync skipped, user not found", "user_id", userID)
		return r.breaker.IsOpen()
	default:
		r.metrics.IncrementResync(ResultError)
		r.logger.ErrorContext(ctx, "index resync failed", "user_id", userID, "error", err)
		open, change := r.breaker.RecordFailure()
		if change.Opened {
			r.logger.ErrorContext(ctx, "search index circuit opened", "breaker", r.breaker.Name())
		}
		return open
	}
}

// Sync rebuilds and writes the projection of one user.
func (r *Resyncer) Sync(ctx context.Context, userID string) error {
	doc, err := r.Projection(ctx, userID)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	if err := r.index.Upsert(callCtx, search.IndexUser, userID, doc); err != nil {
		return fmt.Errorf("upsert user %s projection: %w", userID, err)
	}
	return nil
}

// Projection builds the user index document from the primary store. Only
// active memberships are listed.
func (r *Resyncer) Projection(ctx context.Context, userID string) (search.Document, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	u, err := r.users.FindByID(callCtx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	memberships, err := r.memberships.ListByUser(callCtx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships of %s: %w", userID, err)
	}

	orgs := make([]any, 0, len(memberships))
	for _, m := range memberships {
		if m.IsDeleted {
			continue
		}
		orgs = append(orgs, map[string]any{
			search.FieldID:             m.ID,
			search.FieldOrganisationID: m.OrganisationID,
			search.FieldHashTagID:      m.HashTagID,
			"roles":                    append([]string(nil), m.Roles...),
		})
	}

	return search.Document{
		search.FieldID:            u.ID,
		search.FieldFirstName:     u.FirstName,
		search.FieldEmail:         u.Email,
		search.FieldPhone:         u.Phone,
		search.FieldStatus:        int(u.Status),
		search.FieldIsDeleted:     u.IsDeleted,
		search.FieldRootOrgID:     u.RootOrgID,
		search.FieldChannel:       u.Channel,
		search.FieldFlagsValue:    u.FlagsValue,
		search.FieldUserType:      u.UserType,
		search.FieldOrganisations: orgs,
	}, nil
}
