package xdp

// fits is the single bounds check used before every read of the frame.
// It reports whether n bytes starting at base end at or before end, and
// returns that end. An addition that wraps is rejected like any other
// out-of-range access.
func fits(base, n, end uint32) (uint32, bool) {
	next := base + n
	if next < base || next > end {
		return 0, false
	}
	return next, true
}
