package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hpc-io/pdc-sub004/pkg/flusher"
	"github.com/hpc-io/pdc-sub004/pkg/payload"
)

// payloadMetrics is the Prometheus implementation of payload.Metrics and
// flusher.Metrics.
type payloadMetrics struct {
	writes        *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
	writeBytes    prometheus.Histogram
	reads         *prometheus.CounterVec
	readDuration  *prometheus.HistogramVec
	readBytes     prometheus.Histogram
	sweeps        *prometheus.CounterVec
	sweepFlushed  prometheus.Counter
}

var (
	_ payload.Metrics = (*payloadMetrics)(nil)
	_ flusher.Metrics = (*payloadMetrics)(nil)
)

// PayloadMetrics implements both engine and idle flusher metrics.
type PayloadMetrics interface {
	payload.Metrics
	flusher.Metrics
}

// NewPayloadMetrics creates Prometheus-backed engine metrics.
func NewPayloadMetrics(reg prometheus.Registerer) PayloadMetrics {
	r := registerer(reg)
	if r == nil {
		return nil
	}
	f := promauto.With(r)

	return &payloadMetrics{
		writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("region", "writes_total"),
			Help: "Total region writes by outcome (absorbed, registered, write_through)",
		}, []string{"outcome"}),
		writeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("region", "write_duration_milliseconds"),
			Help:    "Duration of region writes in milliseconds",
			Buckets: durationBuckets,
		}, []string{"outcome"}),
		writeBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    name("region", "write_bytes"),
			Help:    "Distribution of region write sizes",
			Buckets: sizeBuckets,
		}),
		reads: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("region", "reads_total"),
			Help: "Total region reads by status (hit, miss)",
		}, []string{"status"}),
		readDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("region", "read_duration_milliseconds"),
			Help:    "Duration of region reads in milliseconds",
			Buckets: durationBuckets,
		}, []string{"status"}),
		readBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    name("region", "read_bytes"),
			Help:    "Distribution of region read sizes",
			Buckets: sizeBuckets,
		}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("flusher", "sweeps_total"),
			Help: "Total idle flush sweeps by result",
		}, []string{"result"}),
		sweepFlushed: f.NewCounter(prometheus.CounterOpts{
			Name: name("flusher", "objects_flushed_total"),
			Help: "Total objects flushed by idle sweeps",
		}),
	}
}

func (m *payloadMetrics) ObserveWrite(outcome string, bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(outcome).Inc()
	m.writeDuration.WithLabelValues(outcome).Observe(duration.Seconds() * 1000)
	m.writeBytes.Observe(float64(bytes))
}

func (m *payloadMetrics) ObserveRead(hit bool, bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	m.reads.WithLabelValues(status).Inc()
	m.readDuration.WithLabelValues(status).Observe(duration.Seconds() * 1000)
	m.readBytes.Observe(float64(bytes))
}

func (m *payloadMetrics) ObserveSweep(flushed int, _ time.Duration, err error) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(errLabel(err)).Inc()
	m.sweepFlushed.Add(float64(flushed))
}
