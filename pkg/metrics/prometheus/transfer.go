package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

// transferMetrics is the Prometheus implementation of transfer.Metrics.
type transferMetrics struct {
	transitions *prometheus.CounterVec
	replies     *prometheus.CounterVec
	replySize   prometheus.Histogram
	inFlight    prometheus.Gauge
}

var _ transfer.Metrics = (*transferMetrics)(nil)

// NewTransferMetrics creates Prometheus-backed transfer tracker metrics.
func NewTransferMetrics(reg prometheus.Registerer) transfer.Metrics {
	r := registerer(reg)
	if r == nil {
		return nil
	}
	f := promauto.With(r)

	return &transferMetrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("transfer", "transitions_total"),
			Help: "Total transfer requests finishing in each status",
		}, []string{"status"}),
		replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("transfer", "replies_total"),
			Help: "Total deferred replies sent by kind",
		}, []string{"kind"}),
		replySize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    name("transfer", "requests_per_reply"),
			Help:    "Number of requests covered by one deferred reply",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: name("transfer", "tracked_requests"),
			Help: "Requests currently held by the tracker",
		}),
	}
}

func (m *transferMetrics) RecordTransition(status transfer.Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status.String()).Inc()
}

func (m *transferMetrics) RecordReply(kind transfer.ResponseKind, requests int) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind.String()).Inc()
	m.replySize.Observe(float64(requests))
}

func (m *transferMetrics) RecordInFlight(n int) {
	if m == nil {
		return
	}
	m.inFlight.Set(float64(n))
}
