package xdp

// Data is a cursor over the bytes that follow the last validated header.
// Offset and Len are derived from the descriptor on every call.
type Data struct {
	md   *MD
	base uint32
}

// Offset returns the number of window bytes consumed before the cursor.
func (d Data) Offset() uint32 {
	if d.md == nil || d.base < d.md.data {
		return 0
	}
	return d.base - d.md.data
}

// Len returns the number of window bytes remaining at the cursor.
func (d Data) Len() uint32 {
	if d.md == nil || d.base > d.md.dataEnd {
		return 0
	}
	return d.md.dataEnd - d.base
}

// Slice returns exactly n bytes at the cursor, or ok == false when fewer
// than n remain. The result is capacity-capped and must be treated as
// read-only.
func (d Data) Slice(n uint32) ([]byte, bool) {
	if d.md == nil {
		return nil, false
	}
	next, ok := fits(d.base, n, d.md.dataEnd)
	if !ok {
		return nil, false
	}
	return d.md.frame[d.base:next:next], true
}
