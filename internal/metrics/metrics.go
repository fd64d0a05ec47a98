package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for research generation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	VectorGenerations *prometheus.CounterVec
	VectorLatency     *prometheus.HistogramVec
	Batches           *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	StatusRequests    prometheus.Counter
	ArchiveFailures   prometheus.Counter
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VectorGenerations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlyst_research_vector_generations_total",
			Help: "Research vector generations by vector and outcome",
		}, []string{"vector", "outcome"}),

		VectorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careerlyst_research_vector_duration_seconds",
			Help:    "Provider latency per research vector",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
		}, []string{"vector"}),

		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlyst_research_batches_total",
			Help: "Generate-all batches by outcome",
		}, []string{"outcome"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "careerlyst_research_queue_depth",
			Help: "Research jobs waiting for a worker",
		}),

		StatusRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "careerlyst_research_status_requests_total",
			Help: "Research status reads (initial loads and poll ticks)",
		}),

		ArchiveFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "careerlyst_research_archive_failures_total",
			Help: "Generated records that could not be archived to object storage",
		}),
	}
}

func (m *Metrics) ObserveVector(vector, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.VectorGenerations.WithLabelValues(vector, outcome).Inc()
	m.VectorLatency.WithLabelValues(vector).Observe(took.Seconds())
}

func (m *Metrics) ObserveBatch(outcome string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) IncStatusRequests() {
	if m == nil {
		return
	}
	m.StatusRequests.Inc()
}

func (m *Metrics) IncArchiveFailures() {
	if m == nil {
		return
	}
	m.ArchiveFailures.Inc()
}
