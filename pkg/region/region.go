// Package region implements the N-dimensional region algebra used by the
// write-back cache: containment and overlap classification, connect-axis
// merging and row-major strided copies between region buffers.
//
// A Region is an axis-aligned box of 1 to 3 dimensions. Buffers holding a
// region's data are row-major with the last axis fastest, and hold exactly
// unit * Elements() bytes.
package region

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// MaxDims is the highest dimensionality supported.
const MaxDims = 3

var (
	// ErrInvalidRegion is returned for regions with a bad ndim, mismatched
	// offset/size lengths, an empty axis, or an extent that does not fit in
	// the coordinate space.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrOutOfBounds is returned when a region does not fit in an object's dims.
	ErrOutOfBounds = errors.New("region out of bounds")

	// ErrMergeFailed is returned when two regions have no single connect axis.
	ErrMergeFailed = errors.New("regions cannot be merged")

	// ErrBufferSize is returned when a buffer's length does not match unit * elements.
	ErrBufferSize = errors.New("buffer size does not match region")
)

// Region is a hyper-rectangular sub-range of an object's coordinate space.
type Region struct {
	Offset []uint64
	Size   []uint64
}

// New builds a validated region. The slices are copied.
func New(offset, size []uint64) (Region, error) {
	r := Region{
		Offset: append([]uint64(nil), offset...),
		Size:   append([]uint64(nil), size...),
	}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// MustNew is New for literals in tests and tables. It panics on error.
func MustNew(offset, size []uint64) Region {
	r, err := New(offset, size)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate checks ndim, slice lengths and that no axis is empty. Every axis
// end must fit in a uint64 and the element count must fit in an int.
func (r Region) Validate() error {
	n := len(r.Offset)
	if n < 1 || n > MaxDims {
		return fmt.Errorf("%w: ndim %d not in 1..%d", ErrInvalidRegion, n, MaxDims)
	}
	if len(r.Size) != n {
		return fmt.Errorf("%w: %d offsets but %d sizes", ErrInvalidRegion, n, len(r.Size))
	}
	elements := uint64(1)
	for i, s := range r.Size {
		if s == 0 {
			return fmt.Errorf("%w: axis %d has zero size", ErrInvalidRegion, i)
		}
		if r.Offset[i] > math.MaxUint64-s {
			return fmt.Errorf("%w: axis %d offset %d + size %d overflows", ErrInvalidRegion, i, r.Offset[i], s)
		}
		hi, lo := bits.Mul64(elements, s)
		if hi != 0 || lo > math.MaxInt {
			return fmt.Errorf("%w: element count overflows", ErrInvalidRegion)
		}
		elements = lo
	}
	return nil
}

// WithinDims reports ErrOutOfBounds unless offset[i]+size[i] <= dims[i] on every axis.
func (r Region) WithinDims(dims []uint64) error {
	if len(dims) != r.NDim() {
		return fmt.Errorf("%w: region ndim %d, object ndim %d", ErrOutOfBounds, r.NDim(), len(dims))
	}
	for i := range dims {
		if r.Offset[i] > dims[i] || r.Size[i] > dims[i]-r.Offset[i] {
			return fmt.Errorf("%w: axis %d is %d+%d, dim is %d", ErrOutOfBounds, i, r.Offset[i], r.Size[i], dims[i])
		}
	}
	return nil
}

// NDim returns the number of axes.
func (r Region) NDim() int { return len(r.Offset) }

// End returns the exclusive end of axis i.
func (r Region) End(i int) uint64 { return r.Offset[i] + r.Size[i] }

// Elements returns the number of elements covered.
func (r Region) Elements() uint64 {
	n := uint64(1)
	for _, s := range r.Size {
		n *= s
	}
	return n
}

// Bytes returns the buffer length needed to hold the region at the given
// unit, or -1 when that length does not fit in an int.
func (r Region) Bytes(unit int) int {
	n := r.Elements()
	if n > math.MaxInt || (unit > 0 && n > uint64(math.MaxInt/unit)) {
		return -1
	}
	return int(n) * unit
}

// Equal reports whether both regions cover the same box.
func (r Region) Equal(o Region) bool {
	if r.NDim() != o.NDim() {
		return false
	}
	for i := range r.Offset {
		if r.Offset[i] != o.Offset[i] || r.Size[i] != o.Size[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (r Region) Clone() Region {
	return Region{
		Offset: append([]uint64(nil), r.Offset...),
		Size:   append([]uint64(nil), r.Size...),
	}
}

func (r Region) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range r.Offset {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d+%d", r.Offset[i], r.Size[i])
	}
	b.WriteByte(']')
	return b.String()
}
