package perf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"firestige.xyz/xdpwalk/internal/core"
)

// Record is one sample read back from a Ring.
type Record struct {
	Lane      int
	RawSample []byte
}

// LaneStats counts deliveries and losses on one lane.
type LaneStats struct {
	Lane      int
	Delivered uint64
	Lost      uint64
	Queued    int
}

type lane struct {
	q         chan []byte
	delivered atomic.Uint64
	lost      atomic.Uint64
}

// Ring is a bounded, per-lane FIFO. Writers never block: a full lane rejects
// the sample and leaves queued samples untouched. Each lane keeps the order
// of its pushes; there is no order across lanes.
type Ring struct {
	lanes    []*lane
	capacity int

	closed    chan struct{}
	closeOnce sync.Once
	done      atomic.Bool
}

// NewRing creates a ring with the given number of lanes, each holding at
// most capacity samples.
func NewRing(lanes, capacity int) (*Ring, error) {
	if lanes <= 0 {
		return nil, fmt.Errorf("%w: ring needs at least one lane, got %d", core.ErrConfigInvalid, lanes)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: lane capacity must be positive, got %d", core.ErrConfigInvalid, capacity)
	}

	r := &Ring{
		lanes:    make([]*lane, lanes),
		capacity: capacity,
		closed:   make(chan struct{}),
	}
	for i := range r.lanes {
		r.lanes[i] = &lane{q: make(chan []byte, capacity)}
	}
	return r, nil
}

// Lanes returns the number of lanes.
func (r *Ring) Lanes() int { return len(r.lanes) }

// Capacity returns the per-lane capacity.
func (r *Ring) Capacity() int { return r.capacity }

func (r *Ring) push(idx uint32, sample []byte) error {
	if r.done.Load() {
		return core.ErrChannelClosed
	}
	if uint64(idx) >= uint64(len(r.lanes)) {
		return fmt.Errorf("%w: lane %d of %d", core.ErrLaneOutOfRange, idx, len(r.lanes))
	}

	l := r.lanes[idx]
	select {
	case l.q <- sample:
		l.delivered.Add(1)
		return nil
	default:
		l.lost.Add(1)
		return core.ErrChannelFull
	}
}

// Read blocks until a sample is available on the lane. After Close, queued
// samples are still returned before ErrChannelClosed.
func (r *Ring) Read(ctx context.Context, idx int) (Record, error) {
	if idx < 0 || idx >= len(r.lanes) {
		return Record{}, fmt.Errorf("%w: lane %d of %d", core.ErrLaneOutOfRange, idx, len(r.lanes))
	}
	l := r.lanes[idx]

	select {
	case s := <-l.q:
		return Record{Lane: idx, RawSample: s}, nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case <-r.closed:
		select {
		case s := <-l.q:
			return Record{Lane: idx, RawSample: s}, nil
		default:
			return Record{}, core.ErrChannelClosed
		}
	}
}

// Close stops accepting samples and wakes up blocked readers.
func (r *Ring) Close() {
	r.closeOnce.Do(func() {
		r.done.Store(true)
		close(r.closed)
	})
}

// Stats returns a snapshot of every lane.
func (r *Ring) Stats() []LaneStats {
	out := make([]LaneStats, len(r.lanes))
	for i, l := range r.lanes {
		out[i] = LaneStats{
			Lane:      i,
			Delivered: l.delivered.Load(),
			Lost:      l.lost.Load(),
			Queued:    len(l.q),
		}
	}
	return out
}
