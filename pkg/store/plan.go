package store

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/hpc-io/pdc-sub004/pkg/region"
)

// Strategy is the I/O pattern chosen for a region of a flat file.
type Strategy int

const (
	// Contiguous moves the whole region with one I/O.
	Contiguous Strategy = iota
	// Rows issues one I/O per row of a 2D region.
	Rows
	// Planes issues one I/O per slab of a 3D region spanning the fastest axis.
	Planes
	// Lines issues one I/O per fastest-axis line of a 3D region.
	Lines
	// Records stores the region as a standalone record (shape unknown).
	Records
)

func (s Strategy) String() string {
	switch s {
	case Contiguous:
		return "contiguous"
	case Rows:
		return "rows"
	case Planes:
		return "planes"
	case Lines:
		return "lines"
	case Records:
		return "records"
	default:
		return "unknown"
	}
}

// Extent is one positional I/O: Length bytes at FileOffset in the object
// file, mapped to BufOffset in the region buffer.
type Extent struct {
	FileOffset int64
	BufOffset  int
	Length     int
}

// Plan is the ordered list of extents for one region I/O.
type Plan struct {
	Strategy Strategy
	Extents  []Extent
}

// Bytes returns the total number of bytes the plan moves.
func (p Plan) Bytes() int64 {
	var n int64
	for _, e := range p.Extents {
		n += int64(e.Length)
	}
	return n
}

// PlanIO computes the positional I/O for region r of an object with the
// given dims, stored row-major with unit-byte elements. It recognizes the
// layouts where the region is contiguous on disk so that no more I/Os are
// issued than the flattened layout requires.
func PlanIO(r region.Region, dims []uint64, unit int) (Plan, error) {
	if err := r.Validate(); err != nil {
		return Plan{}, err
	}
	if unit <= 0 {
		return Plan{}, fmt.Errorf("%w: unit %d", ErrInvalidUnit, unit)
	}
	if err := r.WithinDims(dims); err != nil {
		return Plan{}, err
	}
	if !fitsFile(dims, unit) {
		return Plan{}, fmt.Errorf("%w: dims %v at unit %d exceed the file size limit", region.ErrOutOfBounds, dims, unit)
	}

	u := uint64(unit)
	off, size := r.Offset, r.Size

	switch r.NDim() {
	case 1:
		return contiguous(off[0]*u, size[0]*u), nil

	case 2:
		d1 := dims[1]
		if off[1] == 0 && size[1] == d1 {
			return contiguous(off[0]*d1*u, size[0]*d1*u), nil
		}
		p := Plan{Strategy: Rows, Extents: make([]Extent, 0, size[0])}
		rowLen := int(size[1] * u)
		for i := uint64(0); i < size[0]; i++ {
			p.Extents = append(p.Extents, Extent{
				FileOffset: int64(((off[0]+i)*d1 + off[1]) * u),
				BufOffset:  int(i) * rowLen,
				Length:     rowLen,
			})
		}
		return p, nil

	default:
		d1, d2 := dims[1], dims[2]
		plane := d1 * d2
		fastFull := off[2] == 0 && size[2] == d2

		if fastFull && off[1] == 0 && size[1] == d1 {
			return contiguous(off[0]*plane*u, size[0]*plane*u), nil
		}

		if fastFull {
			p := Plan{Strategy: Planes, Extents: make([]Extent, 0, size[0])}
			slab := int(size[1] * d2 * u)
			for i := uint64(0); i < size[0]; i++ {
				p.Extents = append(p.Extents, Extent{
					FileOffset: int64(((off[0]+i)*plane + off[1]*d2) * u),
					BufOffset:  int(i) * slab,
					Length:     slab,
				})
			}
			return p, nil
		}

		p := Plan{Strategy: Lines, Extents: make([]Extent, 0, size[0]*size[1])}
		line := int(size[2] * u)
		for i := uint64(0); i < size[0]; i++ {
			for j := uint64(0); j < size[1]; j++ {
				p.Extents = append(p.Extents, Extent{
					FileOffset: int64(((off[0]+i)*plane + (off[1]+j)*d2 + off[2]) * u),
					BufOffset:  int(i*size[1]+j) * line,
					Length:     line,
				})
			}
		}
		return p, nil
	}
}

// fitsFile reports whether a row-major file of dims with unit-byte elements
// can be addressed with int64 offsets.
func fitsFile(dims []uint64, unit int) bool {
	n := uint64(unit)
	for _, d := range dims {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 || lo > math.MaxInt64 {
			return false
		}
		n = lo
	}
	return true
}

func contiguous(fileOffset, length uint64) Plan {
	return Plan{
		Strategy: Contiguous,
		Extents:  []Extent{{FileOffset: int64(fileOffset), Length: int(length)}},
	}
}
