package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed is returned by any call on a closed backend.
	ErrStoreClosed = errors.New("store is closed")

	// ErrShortIO is returned when a positional read or write moved fewer
	// bytes than planned, e.g. reading past the end of the object file.
	ErrShortIO = errors.New("short I/O")

	// ErrShapeRequired is returned when a flat-file backend gets an object
	// without dims.
	ErrShapeRequired = errors.New("object shape required")

	// ErrInvalidUnit is returned for a non-positive element size.
	ErrInvalidUnit = errors.New("invalid element unit")

	// ErrRegionNotFound is returned by record backends when no stored
	// record overlaps the requested region.
	ErrRegionNotFound = errors.New("region not found")
)

// IOError describes a failed durable I/O. Actual is the number of bytes
// transferred before the failure.
type IOError struct {
	Op       string
	Backend  string
	ObjectID uint64
	Path     string
	Offset   int64
	Expected int64
	Actual   int64
	Err      error
}

func (e *IOError) Error() string {
	msg := fmt.Sprintf("%s %s object %d", e.Backend, e.Op, e.ObjectID)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	msg += fmt.Sprintf(" at offset %d: transferred %d of %d bytes", e.Offset, e.Actual, e.Expected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err is or wraps an IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// BytesTransferred returns the bytes moved before err, or 0 when err
// carries no IOError.
func BytesTransferred(err error) int64 {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr.Actual
	}
	return 0
}
