// Package handler exposes the claim engine over HTTP: the consent entry point,
// admin triggers for batch and refresh runs, health and metrics.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rosterclaim/internal/claim/models"
	"rosterclaim/pkg/platform/httputil"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/requestcontext"
)

// MigrationFailedMessage is returned for any migration error other than an unknown record.
const MigrationFailedMessage = "migration could not be completed, please retry"

// Driver runs claim work.
type Driver interface {
	RunSingle(ctx context.Context, key models.Key, consent bool) (models.Outcome, error)
	RefreshSingle(ctx context.Context, key models.Key) (models.Outcome, error)
	RunBatch(ctx context.Context) (models.BatchResult, error)
	Busy() bool
}

// HealthChecker reports whether the service can accept work.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Check(ctx context.Context) error { return f(ctx) }

// Handler serves the claim routes.
type Handler struct {
	driver     Driver
	health     HealthChecker
	gatherer   prometheus.Gatherer
	background context.Context
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthChecker makes /healthz run the checker.
func WithHealthChecker(hc HealthChecker) Option {
	return func(h *Handler) {
		h.health = hc
	}
}

// WithGatherer overrides the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// WithBackground sets the context batches triggered over HTTP run under.
// Cancelling it stops them.
func WithBackground(ctx context.Context) Option {
	return func(h *Handler) {
		h.background = ctx
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New constructs a Handler.
func New(driver Driver, opts ...Option) (*Handler, error) {
	if driver == nil {
		return nil, errors.New("driver is required")
	}
	h := &Handler{
		driver:     driver,
		gatherer:   prometheus.DefaultGatherer,
		background: context.Background(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Post("/v1/user/migrate", h.HandleMigrate)
	r.Route("/admin/shadow-users", func(r chi.Router) {
		r.Post("/sync", h.HandleSync)
		r.Post("/refresh", h.HandleRefresh)
	})
}

// HandleMigrate handles POST /v1/user/migrate.
func (h *Handler) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := httputil.Decode[MigrateRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.logger.WarnContext(ctx, "invalid migrate request", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	key := req.Request.Key()
	outcome, err := h.driver.RunSingle(ctx, key, req.Request.Consent())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "user migration failed",
			"request_id", requestID,
			"key", key.String(),
			"error", err,
		)
		httputil.WriteFailure(w, http.StatusInternalServerError, MigrationFailedMessage)
		return
	}

	h.logger.InfoContext(ctx, "user migration handled",
		"request_id", requestID,
		"key", key.String(),
		"action", req.Request.Action,
		"outcome", outcome,
	)
	httputil.WriteJSON(w, http.StatusOK, OutcomeResponse{RequestID: requestID, Outcome: outcome})
}

// HandleRefresh handles POST /admin/shadow-users/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := httputil.Decode[RecordRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.driver.RefreshSingle(ctx, req.Key())
	if err != nil {
		h.logger.ErrorContext(ctx, "claimed user refresh failed",
			"request_id", requestID,
			"key", req.Key().String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OutcomeResponse{RequestID: requestID, Outcome: outcome})
}

// HandleSync handles POST /admin/shadow-users/sync. The batch runs in the
// background; a second trigger while one is running is refused.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if h.driver.Busy() {
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error:       "conflict",
			Description: "a shadow user batch is already running",
		})
		return
	}

	bctx := requestcontext.WithRequestID(h.background, requestID)
	go func() {
		if _, err := h.driver.RunBatch(bctx); err != nil {
			h.logger.ErrorContext(bctx, "triggered batch failed", "request_id", requestID, "error", err)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, SyncResponse{RequestID: requestID, Status: "started"})
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}
