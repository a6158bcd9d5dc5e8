// Package xdp implements a bounds-checked, zero-copy header walker over the
// data window of one packet.
package xdp

import (
	"fmt"
	"math"

	"firestige.xyz/xdpwalk/internal/core"
)

// MD is the per-invocation packet descriptor. data and dataEnd are offsets
// into frame and delimit the only bytes a program may read.
//
// Invariant: data <= dataEnd <= len(frame).
type MD struct {
	frame   []byte
	data    uint32
	dataEnd uint32

	IngressIfindex uint32
	RxQueueIndex   uint32
	Lane           uint32
}

// NewMD returns a descriptor whose window covers the whole frame.
func NewMD(frame []byte) *MD {
	md := &MD{}
	md.Reset(frame)
	return md
}

// NewMDWithHeadroom returns a descriptor whose window starts headroom bytes
// into frame.
func NewMDWithHeadroom(frame []byte, headroom uint32) (*MD, error) {
	md := NewMD(frame)
	if err := md.SetWindow(headroom, md.dataEnd); err != nil {
		return nil, err
	}
	return md, nil
}

// Reset points the descriptor at a new frame and clears its metadata.
// Lanes reuse one MD across invocations.
func (md *MD) Reset(frame []byte) {
	n := len(frame)
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	md.frame = frame
	md.data = 0
	md.dataEnd = uint32(n)
	md.IngressIfindex = 0
	md.RxQueueIndex = 0
	md.Lane = 0
}

// Data returns the offset of the first byte of the window.
func (md *MD) Data() uint32 { return md.data }

// DataEnd returns the offset one past the last byte of the window.
func (md *MD) DataEnd() uint32 { return md.dataEnd }

// SetWindow moves the window. It is reserved for the runtime; programs only
// ever read the descriptor.
func (md *MD) SetWindow(data, dataEnd uint32) error {
	if data > dataEnd || uint64(dataEnd) > uint64(len(md.frame)) {
		return fmt.Errorf("%w: [%d, %d) over %d bytes", core.ErrInvalidWindow, data, dataEnd, len(md.frame))
	}
	md.data = data
	md.dataEnd = dataEnd
	return nil
}
