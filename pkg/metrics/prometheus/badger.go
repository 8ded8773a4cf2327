package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BadgerCacheSource reports badger's internal cache hit ratios.
// *badger.Store implements it.
type BadgerCacheSource interface {
	CacheHitRatios() (block, index float64)
}

// RegisterBadgerMetrics exposes the record store's block and index cache hit
// ratios as gauges sampled at scrape time. It reports whether anything was
// registered.
func RegisterBadgerMetrics(reg prometheus.Registerer, src BadgerCacheSource) bool {
	r := registerer(reg)
	if r == nil || src == nil {
		return false
	}

	promauto.With(r).NewGaugeFunc(prometheus.GaugeOpts{
		Name:        name("badger", "cache_hit_ratio"),
		Help:        "BadgerDB cache hit ratio (0.0 to 1.0) by cache type",
		ConstLabels: prometheus.Labels{"cache_type": "block"},
	}, func() float64 {
		block, _ := src.CacheHitRatios()
		return block
	})
	promauto.With(r).NewGaugeFunc(prometheus.GaugeOpts{
		Name:        name("badger", "cache_hit_ratio"),
		Help:        "BadgerDB cache hit ratio (0.0 to 1.0) by cache type",
		ConstLabels: prometheus.Labels{"cache_type": "index"},
	}, func() float64 {
		_, index := src.CacheHitRatios()
		return index
	})
	return true
}
