package perf

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/xdp"
)

// PerfMap emits records of type T to a Ring. T must have a fixed binary
// layout (see encoding/binary.Size); its size is fixed for the life of the
// map. Records are encoded in native byte order, like the kernel helper
// copies them.
type PerfMap[T any] struct {
	ring *Ring
	size int
}

// NewPerfMap binds a map of T records to ring.
func NewPerfMap[T any](ring *Ring) (*PerfMap[T], error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %T", core.ErrRecordLayout, zero)
	}
	return &PerfMap[T]{ring: ring, size: size}, nil
}

// RecordSize returns the encoded size of T.
func (m *PerfMap[T]) RecordSize() int { return m.size }

// Insert emits rec on the invocation's lane followed by up to packetSize
// bytes of the packet, counted from the start of the data window.
func (m *PerfMap[T]) Insert(ctx *xdp.Context, rec T, packetSize uint32) error {
	return m.InsertWithFlags(ctx, rec, WithXDPSize(packetSize))
}

// InsertWithFlags emits rec as directed by flags. It never blocks and never
// retries: a full lane yields core.ErrChannelFull.
func (m *PerfMap[T]) InsertWithFlags(ctx *xdp.Context, rec T, flags Flags) error {
	idx := flags.Lane()
	if idx == CurrentLane {
		idx = ctx.Lane()
	}

	var captured []byte
	if n, ok := flags.Capture(); ok {
		head := ctx.Head()
		if avail := head.Len(); n > avail {
			n = avail
		}
		if b, ok := head.Slice(n); ok {
			captured = b
		}
	}

	sample := make([]byte, 0, m.size+len(captured))
	sample, err := binary.Append(sample, binary.NativeEndian, rec)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrRecordLayout, err)
	}
	sample = append(sample, captured...)

	return m.ring.push(idx, sample)
}

// Decode splits a raw sample into its record and the captured packet bytes.
func Decode[T any](raw []byte) (T, []byte, error) {
	var rec T
	size := binary.Size(rec)
	if size <= 0 {
		return rec, nil, fmt.Errorf("%w: %T", core.ErrRecordLayout, rec)
	}
	if len(raw) < size {
		return rec, nil, fmt.Errorf("%w: %d < %d bytes", core.ErrShortSample, len(raw), size)
	}
	if _, err := binary.Decode(raw[:size], binary.NativeEndian, &rec); err != nil {
		return rec, nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, raw[size:], nil
}
