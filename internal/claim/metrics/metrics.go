package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rosterclaim/internal/claim/models"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics provides observability for the claim engine.
// Tracks per-record outcomes, batch runs and index resyncs.
type Metrics struct {
	Outcomes          *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	BatchRuns         *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	BatchRecords      prometheus.Gauge
	Resyncs           *prometheus.CounterVec
	ResyncQueueDepth  prometheus.Gauge
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the claim metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterclaim_reconcile_outcomes_total",
			Help: "Shadow records handled, by outcome",
		}, []string{"outcome"}),
		ReconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rosterclaim_reconcile_duration_seconds",
			Help:    "Duration of one shadow record reconciliation",
			Buckets: durationBuckets,
		}),
		BatchRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterclaim_batch_runs_total",
			Help: "Batch passes, by result (ok, error, busy)",
		}, []string{"result"}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rosterclaim_batch_duration_seconds",
			Help:    "Duration of a full batch pass",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}),
		BatchRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "rosterclaim_batch_last_scanned_records",
			Help: "Records scanned by the most recent batch pass",
		}),
		Resyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterclaim_index_resyncs_total",
			Help: "User index resyncs, by result (ok, error, dropped, skipped)",
		}, []string{"result"}),
		ResyncQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "rosterclaim_index_resync_queue_depth",
			Help: "User ids waiting for an index resync",
		}),
	}
}

// ObserveOutcome records one handled record. Safe on a nil receiver.
func (m *Metrics) ObserveOutcome(outcome models.Outcome, start time.Time) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(string(outcome)).Inc()
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}

// ObserveBatch records a finished batch pass.
func (m *Metrics) ObserveBatch(result models.BatchResult, err error) {
	if m == nil {
		return
	}
	label := "ok"
	if err != nil {
		label = "error"
	}
	m.BatchRuns.WithLabelValues(label).Inc()
	m.BatchDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	m.BatchRecords.Set(float64(result.Scanned))
}

// IncrementBatchBusy records a batch trigger rejected because one was running.
func (m *Metrics) IncrementBatchBusy() {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues("busy").Inc()
}

// IncrementResync records a resync result.
func (m *Metrics) IncrementResync(result string) {
	if m == nil {
		return
	}
	m.Resyncs.WithLabelValues(result).Inc()
}

// SetResyncQueueDepth records the pending resync count.
func (m *Metrics) SetResyncQueueDepth(n int) {
	if m == nil {
		return
	}
	m.ResyncQueueDepth.Set(float64(n))
}
