// Package prometheus implements the component metrics interfaces with
// Prometheus collectors.
//
// Every constructor registers its collectors on reg, or on the shared
// registry from pkg/metrics when reg is nil, and returns nil when neither is
// available so callers can pass the result straight to a component.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpc-io/pdc-sub004/pkg/metrics"
)

// durationBuckets are in milliseconds.
var durationBuckets = []float64{
	0.1,  // 100us - cache hits
	0.5,  // 500us
	1,    // 1ms
	5,    // 5ms
	10,   // 10ms
	50,   // 50ms
	100,  // 100ms
	500,  // 500ms - large flushes
	1000, // 1s
	5000, // 5s
}

var sizeBuckets = []float64{
	4096,      // 4KB
	65536,     // 64KB
	1048576,   // 1MB
	4194304,   // 4MB
	16777216,  // 16MB
	67108864,  // 64MB
	268435456, // 256MB
}

func registerer(reg prometheus.Registerer) prometheus.Registerer {
	if reg != nil {
		return reg
	}
	if r := metrics.GetRegistry(); r != nil {
		return r
	}
	return nil
}

func name(subsystem, metric string) string {
	return prometheus.BuildFQName(metrics.Namespace, subsystem, metric)
}

func errLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
