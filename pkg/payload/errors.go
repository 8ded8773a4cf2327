package payload

import (
	"errors"
	"fmt"
)

// Region service errors. API handlers map them to HTTP status codes.
var (
	// ErrNDimMismatch indicates the region's ndim differs from the object's.
	//
	// HTTP: 400 Bad Request
	ErrNDimMismatch = errors.New("region ndim does not match object")

	// ErrServiceClosed indicates the service was shut down.
	//
	// HTTP: 503 Service Unavailable
	ErrServiceClosed = errors.New("region service is closed")
)

// RegionError wraps a failed region operation with the context needed to
// diagnose it, while keeping errors.Is working on the underlying cause.
//
//	err := &RegionError{Op: "write_region", ObjectID: 7, Region: "[2+3, 0+10]", Err: store.ErrShortIO}
//	errors.Is(err, store.ErrShortIO) // true
type RegionError struct {
	// Op is write_region, read_region or flush.
	Op string

	// ObjectID is the object the operation targeted.
	ObjectID uint64

	// Region is the region in offset+size form, empty for flushes.
	Region string

	// Unit is the element size in bytes.
	Unit int

	// Err is the underlying error.
	Err error
}

func (e *RegionError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("%s object %d: %v", e.Op, e.ObjectID, e.Err)
	}
	return fmt.Sprintf("%s object %d region %s (unit %d): %v", e.Op, e.ObjectID, e.Region, e.Unit, e.Err)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}
