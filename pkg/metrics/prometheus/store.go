package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hpc-io/pdc-sub004/pkg/store"
)

// storeMetrics is the Prometheus implementation of store.Metrics.
type storeMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	extents    *prometheus.HistogramVec
}

var _ store.Metrics = (*storeMetrics)(nil)

// NewStoreMetrics creates Prometheus-backed durable I/O metrics.
func NewStoreMetrics(reg prometheus.Registerer) store.Metrics {
	r := registerer(reg)
	if r == nil {
		return nil
	}
	f := promauto.With(r)

	return &storeMetrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("store", "operations_total"),
			Help: "Total durable region operations by backend, op, strategy and result",
		}, []string{"backend", "op", "strategy", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("store", "operation_duration_milliseconds"),
			Help:    "Duration of durable region operations in milliseconds",
			Buckets: durationBuckets,
		}, []string{"backend", "op"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("store", "bytes_total"),
			Help: "Total bytes moved to or from durable storage",
		}, []string{"backend", "op"}),
		extents: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("store", "extents_per_operation"),
			Help:    "Positional I/O calls issued per region operation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"backend", "op"}),
	}
}

func (m *storeMetrics) ObserveIO(backend, op string, strategy store.Strategy, extents int, bytes int64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(backend, op, strategy.String(), errLabel(err)).Inc()
	m.duration.WithLabelValues(backend, op).Observe(duration.Seconds() * 1000)
	m.bytes.WithLabelValues(backend, op).Add(float64(bytes))
	m.extents.WithLabelValues(backend, op).Observe(float64(extents))
}
