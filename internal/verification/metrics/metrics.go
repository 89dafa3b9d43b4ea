package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
// Tracks proof outcomes, replays and the duration of ledger round trips.
type Metrics struct {
	ProofsTotal        *prometheus.CounterVec
	ReplaysTotal       prometheus.Counter
	PipelineDuration   prometheus.Histogram
	StoreReadDuration  prometheus.Histogram
	StoreWriteDuration prometheus.Histogram
	LockWaitDuration   prometheus.Histogram
}

var ledgerBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// New creates a new Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. A nil reg leaves them
// unregistered, which tests use to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProofsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_proofs_total",
			Help: "Proofs processed, by provider namespace and outcome",
		}, []string{"namespace", "outcome"}),
		ReplaysTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "persona_proof_replays_total",
			Help: "Proofs answered from the idempotency record instead of writing again",
		}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "persona_pipeline_duration_seconds",
			Help:    "Duration of HandleProof from verification to write receipt",
			Buckets: ledgerBuckets,
		}),
		StoreReadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "persona_store_read_duration_seconds",
			Help:    "Duration of persona document reads",
			Buckets: ledgerBuckets,
		}),
		StoreWriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "persona_store_write_duration_seconds",
			Help:    "Duration of persona document writes (broadcast, not finality)",
			Buckets: ledgerBuckets,
		}),
		LockWaitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "persona_lock_wait_duration_seconds",
			Help:    "Time spent waiting for the per-user lock",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}
}

// IncrementProof records one pipeline outcome. Call with the error kind, or
// "success".
func (m *Metrics) IncrementProof(namespace, outcome string) {
	if m == nil {
		return
	}
	if namespace == "" {
		namespace = "unknown"
	}
	m.ProofsTotal.WithLabelValues(namespace, outcome).Inc()
}

func (m *Metrics) IncrementReplay() {
	if m == nil {
		return
	}
	m.ReplaysTotal.Inc()
}

// ObservePipeline records the duration of a HandleProof call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePipeline(start time.Time) {
	if m == nil {
		return
	}
	m.PipelineDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveStoreRead(start time.Time) {
	if m == nil {
		return
	}
	m.StoreReadDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveStoreWrite(start time.Time) {
	if m == nil {
		return
	}
	m.StoreWriteDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLockWait(start time.Time) {
	if m == nil {
		return
	}
	m.LockWaitDuration.Observe(time.Since(start).Seconds())
}
