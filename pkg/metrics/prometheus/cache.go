package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hpc-io/pdc-sub004/pkg/cache"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	registered     prometheus.Counter
	registerBytes  prometheus.Histogram
	superseded     prometheus.Counter
	flushes        *prometheus.CounterVec
	flushDuration  prometheus.Histogram
	flushedBytes   prometheus.Counter
	flushedRegions prometheus.Counter
	objects        prometheus.Gauge
	regions        prometheus.Gauge
	residentBytes  prometheus.Gauge
}

var _ cache.Metrics = (*cacheMetrics)(nil)

// NewCacheMetrics creates Prometheus-backed cache metrics.
func NewCacheMetrics(reg prometheus.Registerer) cache.Metrics {
	r := registerer(reg)
	if r == nil {
		return nil
	}
	f := promauto.With(r)

	return &cacheMetrics{
		registered: f.NewCounter(prometheus.CounterOpts{
			Name: name("cache", "regions_registered_total"),
			Help: "Total number of regions added to the cache",
		}),
		registerBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    name("cache", "region_bytes"),
			Help:    "Distribution of cached region sizes",
			Buckets: sizeBuckets,
		}),
		superseded: f.NewCounter(prometheus.CounterOpts{
			Name: name("cache", "regions_superseded_total"),
			Help: "Total number of cached regions dropped because a newer write covered them",
		}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: name("cache", "flushes_total"),
			Help: "Total number of object flushes by result",
		}, []string{"result"}),
		flushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    name("cache", "flush_duration_milliseconds"),
			Help:    "Duration of object flushes in milliseconds",
			Buckets: durationBuckets,
		}),
		flushedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: name("cache", "flushed_bytes_total"),
			Help: "Total bytes written to durable storage by flushes",
		}),
		flushedRegions: f.NewCounter(prometheus.CounterOpts{
			Name: name("cache", "flushed_regions_total"),
			Help: "Total regions written to durable storage by flushes",
		}),
		objects: f.NewGauge(prometheus.GaugeOpts{
			Name: name("cache", "objects"),
			Help: "Objects currently held in the cache",
		}),
		regions: f.NewGauge(prometheus.GaugeOpts{
			Name: name("cache", "regions"),
			Help: "Regions currently held in the cache",
		}),
		residentBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: name("cache", "resident_bytes"),
			Help: "Bytes currently held in the cache",
		}),
	}
}

func (m *cacheMetrics) RecordRegister(bytes int64, superseded int) {
	if m == nil {
		return
	}
	m.registered.Inc()
	m.registerBytes.Observe(float64(bytes))
	if superseded > 0 {
		m.superseded.Add(float64(superseded))
	}
}

func (m *cacheMetrics) ObserveFlush(regions int, bytes int64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(errLabel(err)).Inc()
	m.flushDuration.Observe(duration.Seconds() * 1000)
	m.flushedBytes.Add(float64(bytes))
	m.flushedRegions.Add(float64(regions))
}

func (m *cacheMetrics) RecordResident(objects, regions int, bytes int64) {
	if m == nil {
		return
	}
	m.objects.Set(float64(objects))
	m.regions.Set(float64(regions))
	m.residentBytes.Set(float64(bytes))
}
