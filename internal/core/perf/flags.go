// Package perf implements the outbound event channel: fixed-layout records,
// optionally followed by a capture of the packet, delivered per lane to an
// out-of-band reader.
package perf

// CurrentLane is the lane index meaning "the lane of the calling invocation".
const CurrentLane uint32 = 0xFFFFFFFF

// ctxLenMask bounds the capture size the way BPF_F_CTXLEN_MASK does.
const ctxLenMask = 0xFFFFF

// Flags controls where an event goes and how much of the packet it carries.
// The zero value targets the current lane and captures nothing.
type Flags struct {
	lane       uint32
	pinned     bool
	capture    uint32
	hasCapture bool
}

// WithXDPSize returns flags requesting a capture of up to n packet bytes.
func WithXDPSize(n uint32) Flags {
	return Flags{}.WithXDPSize(n)
}

// WithLane returns flags that deliver to lane i instead of the current lane.
func WithLane(i uint32) Flags {
	return Flags{}.WithLane(i)
}

// WithXDPSize sets the requested capture size. A request of zero is kept
// distinct from no request.
func (f Flags) WithXDPSize(n uint32) Flags {
	f.capture = n
	f.hasCapture = true
	return f
}

// WithLane pins delivery to lane i. CurrentLane unpins it.
func (f Flags) WithLane(i uint32) Flags {
	f.lane = i
	f.pinned = i != CurrentLane
	return f
}

// Lane returns the pinned lane, or CurrentLane.
func (f Flags) Lane() uint32 {
	if !f.pinned {
		return CurrentLane
	}
	return f.lane
}

// Capture returns the requested capture size and whether one was requested.
func (f Flags) Capture() (uint32, bool) {
	return f.capture, f.hasCapture
}

// Value packs the flags into the 64-bit layout of the kernel's
// bpf_perf_event_output: lane index in the low word, capture size in the
// high word. A zero-size request and no request both pack to zero.
func (f Flags) Value() uint64 {
	v := uint64(f.Lane())
	if f.hasCapture {
		v |= uint64(f.capture&ctxLenMask) << 32
	}
	return v
}
