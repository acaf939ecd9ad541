package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/platform/middleware"
	"rosterclaim/pkg/platform/sentinel"
)

type singleCall struct {
	key     models.Key
	consent bool
}

type fakeDriver struct {
	mu         sync.Mutex
	singles    []singleCall
	refreshes  []models.Key
	outcome    models.Outcome
	err        error
	busy       bool
	batchCalls chan struct{}
}

func (f *fakeDriver) RunSingle(_ context.Context, key models.Key, consent bool) (models.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, singleCall{key: key, consent: consent})
	return f.outcome, f.err
}

func (f *fakeDriver) RefreshSingle(_ context.Context, key models.Key) (models.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, key)
	return f.outcome, f.err
}

func (f *fakeDriver) RunBatch(context.Context) (models.BatchResult, error) {
	f.batchCalls <- struct{}{}
	return models.BatchResult{}, nil
}

func (f *fakeDriver) Busy() bool {
	return f.busy
}

type fakeHealth struct{ err error }

func (f *fakeHealth) Check(context.Context) error { return f.err }

type HandlerSuite struct {
	suite.Suite
	driver *fakeDriver
	health *fakeHealth
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.driver = &fakeDriver{outcome: models.OutcomeClaimed, batchCalls: make(chan struct{}, 1)}
	s.health = &fakeHealth{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "rosterclaim_test_total", Help: "test"}))

	h, err := New(s.driver,
		WithHealthChecker(s.health),
		WithGatherer(reg),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	h.Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *HandlerSuite) TestMigrate() {
	s.Run("accept", func() {
		rec := s.do(http.MethodPost, "/v1/user/migrate", `{"request":{"channel":"ntp","userExtId":"u1","action":"accept"}}`)
		s.Equal(http.StatusOK, rec.Code)
		body := s.decode(rec)
		s.Equal("claimed", body["outcome"])
		s.Equal("req-1", body["request_id"])
		s.Equal(singleCall{key: models.Key{Channel: "ntp", UserExtID: "u1"}, consent: true}, s.driver.singles[0])
	})
	s.Run("reject", func() {
		s.driver.outcome = models.OutcomeRejected
		rec := s.do(http.MethodPost, "/v1/user/migrate", `{"request":{"channel":"ntp","userExtId":"u1","action":"REJECT"}}`)
		s.Equal(http.StatusOK, rec.Code)
		s.False(s.driver.singles[len(s.driver.singles)-1].consent)
	})
	s.Run("unknown action", func() {
		rec := s.do(http.MethodPost, "/v1/user/migrate", `{"request":{"channel":"ntp","userExtId":"u1","action":"maybe"}}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("missing key", func() {
		rec := s.do(http.MethodPost, "/v1/user/migrate", `{"request":{"channel":"ntp","action":"accept"}}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("unknown record", func() {
		s.driver.err = fmt.Errorf("load shadow user: %w", sentinel.ErrNotFound)
		rec := s.do(http.MethodPost, "/v1/user/migrate", `{"request":{"channel":"ntp","userExtId":"nope","action":"accept"}}`)
		s.Equal(http.StatusNotFound, rec.Code)
	})
	s.Run("failure asks for a retry", func() {
		s.driver.err = errors.New("user store down")
		rec := s.do(http.MethodPost, "/v1/user/migrate", `{"request":{"channel":"ntp","userExtId":"u1","action":"accept"}}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.Equal(MigrationFailedMessage, s.decode(rec)["error_description"])
	})
}

func (s *HandlerSuite) TestRefresh() {
	s.driver.outcome = models.OutcomeRefreshed
	rec := s.do(http.MethodPost, "/admin/shadow-users/refresh", `{"channel":"ntp","userExtId":"u1"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("refreshed", s.decode(rec)["outcome"])
	s.Equal([]models.Key{{Channel: "ntp", UserExtID: "u1"}}, s.driver.refreshes)
}

func (s *HandlerSuite) TestSync() {
	s.Run("starts a batch", func() {
		rec := s.do(http.MethodPost, "/admin/shadow-users/sync", "")
		s.Equal(http.StatusAccepted, rec.Code)
		s.Equal("started", s.decode(rec)["status"])
		<-s.driver.batchCalls
	})
	s.Run("busy", func() {
		s.driver.busy = true
		rec := s.do(http.MethodPost, "/admin/shadow-users/sync", "")
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestHealthAndMetrics() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)

	s.health.err = errors.New("custodian organisation id is not configured")
	rec = s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "rosterclaim_test_total")
}
