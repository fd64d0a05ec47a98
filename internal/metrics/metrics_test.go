package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveVector("mission", "success", 2*time.Second)
	m.ObserveVector("mission", "success", time.Second)
	m.ObserveVector("risks", "failed", time.Second)
	m.ObserveBatch("partial")
	m.SetQueueDepth(3)
	m.IncStatusRequests()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VectorGenerations.WithLabelValues("mission", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VectorGenerations.WithLabelValues("risks", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("partial")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusRequests))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveVector("mission", "success", time.Second)
		m.ObserveBatch("complete")
		m.SetQueueDepth(1)
		m.IncStatusRequests()
		m.IncArchiveFailures()
	})
}
