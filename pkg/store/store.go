// Package store defines durable storage for object regions.
//
// Objects with a known shape live in one flat row-major file per
// (object, server rank); Plan computes the positional I/O needed to move a
// region between that file and a region buffer. Objects whose shape is not
// known are kept as region records instead. Selector routes each call to
// the right backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hpc-io/pdc-sub004/pkg/region"
)

// Object identifies the durable target of a region I/O.
type Object struct {
	// ID is the object id.
	ID uint64

	// Dims is the object's shape, slowest axis first. Nil when unknown.
	Dims []uint64

	// Rank is the server rank owning the flat file.
	Rank int
}

// HasShape reports whether the object's dims are known.
func (o Object) HasShape() bool {
	return len(o.Dims) > 0
}

func (o Object) String() string {
	return fmt.Sprintf("object %d (rank %d, dims %v)", o.ID, o.Rank, o.Dims)
}

// Backend moves region buffers to and from durable storage.
//
// Implementations must be safe for concurrent use. A failed call returns an
// error describing how many bytes were actually transferred (see IOError).
type Backend interface {
	// WriteRegion persists buf, the row-major data of r, for obj.
	WriteRegion(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) error

	// ReadRegion fills buf with the durable data of r for obj.
	ReadRegion(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) error

	// Name returns the backend type, used in logs and metrics.
	Name() string

	// Close releases resources held by the backend.
	Close() error
}

// Metrics records durable I/O. A nil Metrics disables collection.
type Metrics interface {
	ObserveIO(backend, op string, strategy Strategy, extents int, bytes int64, duration time.Duration, err error)
}

// Op names used in IOError and metrics.
const (
	OpWrite = "write"
	OpRead  = "read"
)

// CheckBuffer validates unit and buffer length for r.
func CheckBuffer(r region.Region, unit int, buf []byte) error {
	if unit <= 0 {
		return fmt.Errorf("%w: unit %d", ErrInvalidUnit, unit)
	}
	if want := r.Bytes(unit); len(buf) != want {
		return fmt.Errorf("%w: have %d bytes, region needs %d", region.ErrBufferSize, len(buf), want)
	}
	return nil
}
