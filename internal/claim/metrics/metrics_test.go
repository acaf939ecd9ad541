package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"rosterclaim/internal/claim/models"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveOutcome(models.OutcomeClaimed, time.Now())
	m.ObserveOutcome(models.OutcomeClaimed, time.Now())
	m.ObserveOutcome(models.OutcomeMultiMatch, time.Now())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("multimatch")))

	start := time.Now()
	m.ObserveBatch(models.BatchResult{Scanned: 7, StartedAt: start, FinishedAt: start.Add(time.Second)}, nil)
	m.ObserveBatch(models.BatchResult{StartedAt: start, FinishedAt: start}, errors.New("boom"))
	m.IncrementBatchBusy()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("busy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BatchRecords))

	m.IncrementResync("dropped")
	m.SetResyncQueueDepth(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resyncs.WithLabelValues("dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ResyncQueueDepth))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome(models.OutcomeClaimed, time.Now())
		m.ObserveBatch(models.BatchResult{}, nil)
		m.IncrementBatchBusy()
		m.IncrementResync("ok")
		m.SetResyncQueueDepth(1)
	})
}
