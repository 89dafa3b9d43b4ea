package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics shared by all routes.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	PanicsRecovered prometheus.Counter
}

// New creates and registers HTTP metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "persona_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "status"}),
		PanicsRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_http_panics_recovered_total",
			Help: "Total number of handler panics recovered by middleware",
		}),
	}
}

// ObserveRequest records the latency of one request.
func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, statusClass(status)).Observe(time.Since(start).Seconds())
}

// IncrementPanics records a recovered panic.
func (m *Metrics) IncrementPanics() {
	if m == nil {
		return
	}
	m.PanicsRecovered.Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
