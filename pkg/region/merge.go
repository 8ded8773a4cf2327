package region

import "fmt"

// Merge joins a and b into one region when they differ on at most one axis
// and their intervals on that axis touch or overlap. The merged buffer holds
// a's bytes, then b's bytes on top, so b wins wherever the two overlap.
// Identical regions merge on the last axis.
func Merge(a Region, bufA []byte, b Region, bufB []byte, unit int) (Region, []byte, error) {
	if a.NDim() != b.NDim() {
		return Region{}, nil, fmt.Errorf("%w: ndim %d vs %d", ErrMergeFailed, a.NDim(), b.NDim())
	}
	if len(bufA) != a.Bytes(unit) || len(bufB) != b.Bytes(unit) {
		return Region{}, nil, ErrBufferSize
	}

	axis, ok := connectAxis(a, b)
	if !ok {
		return Region{}, nil, fmt.Errorf("%w: %s and %s", ErrMergeFailed, a, b)
	}

	merged := a.Clone()
	lo := min(a.Offset[axis], b.Offset[axis])
	hi := max(a.End(axis), b.End(axis))
	merged.Offset[axis] = lo
	merged.Size[axis] = hi - lo

	buf := make([]byte, merged.Bytes(unit))
	CopyIn(merged, buf, a, bufA, unit)
	CopyIn(merged, buf, b, bufB, unit)
	return merged, buf, nil
}

// CanMerge reports whether Merge would succeed for a and b.
func CanMerge(a, b Region) bool {
	if a.NDim() != b.NDim() {
		return false
	}
	_, ok := connectAxis(a, b)
	return ok
}

// connectAxis returns the single axis on which a and b differ, provided
// their intervals on it touch or overlap.
func connectAxis(a, b Region) (int, bool) {
	axis := -1
	for i := range a.Offset {
		if a.Offset[i] == b.Offset[i] && a.Size[i] == b.Size[i] {
			continue
		}
		if axis >= 0 {
			return 0, false
		}
		axis = i
	}
	if axis < 0 {
		return a.NDim() - 1, true
	}
	if a.Offset[axis] > b.End(axis) || b.Offset[axis] > a.End(axis) {
		return 0, false
	}
	return axis, true
}
