package region

// Relation describes how region A relates to region B.
type Relation int

const (
	// NoOverlap means A and B share no element.
	NoOverlap Relation = iota
	// Contained means A lies entirely inside B.
	Contained
	// ContainedBy means B lies entirely inside A and A is not inside B.
	ContainedBy
	// PartialOverlap means A and B intersect without either containing the other.
	PartialOverlap
)

func (r Relation) String() string {
	switch r {
	case NoOverlap:
		return "no_overlap"
	case Contained:
		return "contained"
	case ContainedBy:
		return "contained_by"
	case PartialOverlap:
		return "partial_overlap"
	default:
		return "unknown"
	}
}

// Classify returns the relation of a to b. Containment is tested first, so
// Classify(a, a) is Contained. Regions of different ndim never overlap.
func Classify(a, b Region) Relation {
	if a.NDim() != b.NDim() {
		return NoOverlap
	}
	switch {
	case within(a, b):
		return Contained
	case within(b, a):
		return ContainedBy
	case intersects(a, b):
		return PartialOverlap
	default:
		return NoOverlap
	}
}

// Contains reports whether inner lies entirely inside outer.
func Contains(outer, inner Region) bool {
	return outer.NDim() == inner.NDim() && within(inner, outer)
}

// Overlap returns the intersection of a and b, and false when they share no element.
func Overlap(a, b Region) (Region, bool) {
	if a.NDim() != b.NDim() || !intersects(a, b) {
		return Region{}, false
	}
	n := a.NDim()
	out := Region{Offset: make([]uint64, n), Size: make([]uint64, n)}
	for i := 0; i < n; i++ {
		lo := max(a.Offset[i], b.Offset[i])
		hi := min(a.End(i), b.End(i))
		out.Offset[i] = lo
		out.Size[i] = hi - lo
	}
	return out, true
}

func within(a, b Region) bool {
	for i := range a.Offset {
		if a.Offset[i] < b.Offset[i] || a.End(i) > b.End(i) {
			return false
		}
	}
	return true
}

func intersects(a, b Region) bool {
	for i := range a.Offset {
		if a.Offset[i] >= b.End(i) || b.Offset[i] >= a.End(i) {
			return false
		}
	}
	return true
}
