package payload

import (
	"time"

	"github.com/hpc-io/pdc-sub004/pkg/store"
)

// Operation names, used in logs, spans and transfer jobs.
const (
	OpWriteRegion = "write_region"
	OpReadRegion  = "read_region"
	OpFlush       = "flush"
)

// Write outcomes.
const (
	// OutcomeAbsorbed means a cached region contained the write.
	OutcomeAbsorbed = "absorbed"
	// OutcomeRegistered means the write was cached as a new region.
	OutcomeRegistered = "registered"
	// OutcomeWriteThrough means the write was too large to cache and went
	// straight to durable storage.
	OutcomeWriteThrough = "write_through"
)

// Object identifies the target of a region operation. Dims is nil when the
// object's shape is not known to this server.
type Object struct {
	ID   uint64
	Dims []uint64
}

func (o Object) target(rank int) store.Object {
	return store.Object{ID: o.ID, Dims: o.Dims, Rank: rank}
}

// Config configures the region service.
type Config struct {
	// Rank is this server's rank; it selects the durable file.
	Rank int
}

// Metrics records engine-level activity. A nil Metrics disables collection.
type Metrics interface {
	ObserveWrite(outcome string, bytes int, duration time.Duration)
	ObserveRead(hit bool, bytes int, duration time.Duration)
}

// Stats counts engine outcomes since start.
type Stats struct {
	Absorbed     int64 `json:"writes_absorbed"`
	Registered   int64 `json:"writes_registered"`
	WriteThrough int64 `json:"writes_through"`
	ReadHits     int64 `json:"read_hits"`
	ReadMisses   int64 `json:"read_misses"`
	Submitted    int64 `json:"submitted"`
	Rejected     int64 `json:"rejected"`
}
