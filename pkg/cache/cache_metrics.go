package cache

import "time"

// Metrics provides observability for the region cache.
//
// This is optional: with a nil Metrics collection is skipped.
type Metrics interface {
	// RecordRegister records a newly cached region and how many older
	// regions it superseded.
	RecordRegister(bytes int64, superseded int)

	// ObserveFlush records one object flush.
	ObserveFlush(regions int, bytes int64, duration time.Duration, err error)

	// RecordResident records the current cache footprint.
	RecordResident(objects, regions int, bytes int64)
}
