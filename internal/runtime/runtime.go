// Package runtime runs a packet program over a fixed set of lanes.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"sync"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/xdp"
)

const defaultQueueCapacity = 4096

// Config contains runtime configuration.
type Config struct {
	Lanes         int              // 0 = GOMAXPROCS
	QueueCapacity int              // Per-lane input queue, 0 = 4096
	Strategy      DispatchStrategy // nil = flow-hash
	Program       xdp.Program      // Shared by all lanes, must be safe for concurrent Run
}

// Runtime dispatches submitted packets to lanes. Each lane invokes the
// program sequentially; lanes run in parallel.
type Runtime struct {
	program  xdp.Program
	strategy DispatchStrategy
	lanes    []*Lane

	mu      sync.RWMutex
	started bool
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runtime. Lanes are not running until Start.
func New(cfg Config) (*Runtime, error) {
	if cfg.Program == nil {
		return nil, fmt.Errorf("%w: runtime needs a program", core.ErrConfigInvalid)
	}
	if cfg.Lanes < 0 || cfg.QueueCapacity < 0 {
		return nil, fmt.Errorf("%w: lanes=%d queue_capacity=%d", core.ErrConfigInvalid, cfg.Lanes, cfg.QueueCapacity)
	}
	if cfg.Lanes == 0 {
		cfg.Lanes = goruntime.GOMAXPROCS(0)
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.Strategy == nil {
		cfg.Strategy = &FlowHashStrategy{}
	}

	r := &Runtime{
		program:  cfg.Program,
		strategy: cfg.Strategy,
		lanes:    make([]*Lane, cfg.Lanes),
	}
	for i := range r.lanes {
		r.lanes[i] = newLane(i, cfg.Program, cfg.QueueCapacity)
	}
	return r, nil
}

// Lanes returns the number of lanes.
func (r *Runtime) Lanes() int { return len(r.lanes) }

// Start launches one goroutine per lane.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return core.ErrRuntimeStopped
	}
	if r.started {
		return nil
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, l := range r.lanes {
		r.wg.Add(1)
		go func(l *Lane) {
			defer r.wg.Done()
			l.run(ctx)
		}(l)
	}

	slog.Info("runtime started",
		"program", r.program.Name(),
		"lanes", len(r.lanes),
		"dispatch", r.strategy.Name())
	return nil
}

// Submit routes pkt to a lane. It never blocks; false means the packet was
// dropped because the lane queue was full or the runtime is stopped.
func (r *Runtime) Submit(pkt core.RawPacket) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return false
	}
	return r.lanes[r.laneFor(pkt)].enqueue(pkt)
}

// SubmitWait routes pkt to a lane and waits for room in its queue. It
// returns ErrRuntimeStopped after Stop and ctx.Err() when ctx ends first;
// only the latter counts as a queue drop. Stop waits for pending calls.
func (r *Runtime) SubmitWait(ctx context.Context, pkt core.RawPacket) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return core.ErrRuntimeStopped
	}
	return r.lanes[r.laneFor(pkt)].enqueueWait(ctx, pkt)
}

func (r *Runtime) laneFor(pkt core.RawPacket) int {
	idx := r.strategy.Dispatch(pkt, len(r.lanes))
	if idx < 0 || idx >= len(r.lanes) {
		return 0
	}
	return idx
}

// Stop rejects further packets, lets every lane drain its queue and waits
// for the lane goroutines. It is safe to call more than once.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for _, l := range r.lanes {
		close(l.queue)
	}
	started := r.started
	r.mu.Unlock()

	if started {
		r.wg.Wait()
		r.cancel()
	}

	s := r.Stats()
	slog.Info("runtime stopped",
		"program", r.program.Name(),
		"received", s.Received,
		"queue_drops", s.QueueDrops)
}

// Stats represents runtime statistics.
type Stats struct {
	Lanes      []LaneStats
	Received   uint64
	QueueDrops uint64
	Actions    map[core.Action]uint64
}

// Stats returns per-lane and aggregate counters.
func (r *Runtime) Stats() Stats {
	s := Stats{
		Lanes:   make([]LaneStats, len(r.lanes)),
		Actions: make(map[core.Action]uint64, len(actionSlots)),
	}
	for i, l := range r.lanes {
		ls := l.stats()
		s.Lanes[i] = ls
		s.Received += ls.Received
		s.QueueDrops += ls.QueueDrops
		for a, n := range ls.Actions {
			s.Actions[a] += n
		}
	}
	return s
}
