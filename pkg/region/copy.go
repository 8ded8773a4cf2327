package region

// walkRuns visits every contiguous run of box (a full extent of its last
// axis) and reports the byte offsets of that run inside the buffers of a and
// b, both of which must contain box. n is the run length in bytes.
func walkRuns(box, a, b Region, unit int, fn func(offA, offB, n int)) {
	ndim := box.NDim()
	last := ndim - 1
	runLen := int(box.Size[last]) * unit

	stridesA := strides(a)
	stridesB := strides(b)

	idx := make([]uint64, ndim)
	for {
		var offA, offB uint64
		for i := 0; i < ndim; i++ {
			c := box.Offset[i] + idx[i]
			offA += (c - a.Offset[i]) * stridesA[i]
			offB += (c - b.Offset[i]) * stridesB[i]
		}
		fn(int(offA)*unit, int(offB)*unit, runLen)

		// Advance the odometer over every axis but the last.
		i := last - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < box.Size[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// strides returns the element stride of each axis in r's row-major buffer.
func strides(r Region) []uint64 {
	n := r.NDim()
	s := make([]uint64, n)
	acc := uint64(1)
	for i := n - 1; i >= 0; i-- {
		s[i] = acc
		acc *= r.Size[i]
	}
	return s
}

// CopyIn writes src's data into the buffer of dst. src must lie inside dst.
func CopyIn(dst Region, dstBuf []byte, src Region, srcBuf []byte, unit int) {
	walkRuns(src, dst, src, unit, func(offDst, offSrc, n int) {
		copy(dstBuf[offDst:offDst+n], srcBuf[offSrc:offSrc+n])
	})
}

// CopyOut reads the part of src's buffer covered by dst into dstBuf. dst
// must lie inside src.
func CopyOut(src Region, srcBuf []byte, dst Region, dstBuf []byte, unit int) {
	walkRuns(dst, src, dst, unit, func(offSrc, offDst, n int) {
		copy(dstBuf[offDst:offDst+n], srcBuf[offSrc:offSrc+n])
	})
}

// CopyOverlap copies the intersection of src and dst from srcBuf into
// dstBuf. It returns the number of bytes copied, 0 when they do not overlap.
func CopyOverlap(dst Region, dstBuf []byte, src Region, srcBuf []byte, unit int) int {
	ov, ok := Overlap(dst, src)
	if !ok {
		return 0
	}
	walkRuns(ov, dst, src, unit, func(offDst, offSrc, n int) {
		copy(dstBuf[offDst:offDst+n], srcBuf[offSrc:offSrc+n])
	})
	return ov.Bytes(unit)
}
