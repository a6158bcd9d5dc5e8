package runtime

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/xdp"
	"firestige.xyz/xdpwalk/internal/metrics"
)

// Lane runs one program invocation at a time over its own queue. It owns a
// single MD that is reset for every packet.
type Lane struct {
	id      int
	program xdp.Program
	queue   chan core.RawPacket

	md  xdp.MD
	ctx *xdp.Context

	received   atomic.Uint64
	queueDrops atomic.Uint64
	actions    [len(actionSlots)]atomic.Uint64

	invocations [len(actionSlots)]prometheus.Counter
	drops       prometheus.Counter
	latency     prometheus.Observer
}

var actionSlots = [...]core.Action{
	core.ActionAborted, core.ActionDrop, core.ActionPass, core.ActionTx, core.ActionRedirect,
}

func newLane(id int, program xdp.Program, capacity int) *Lane {
	label := strconv.Itoa(id)
	l := &Lane{
		id:      id,
		program: program,
		queue:   make(chan core.RawPacket, capacity),
		drops:   metrics.LaneQueueDropsTotal.WithLabelValues(label),
		latency: metrics.InvocationLatencySeconds.WithLabelValues(label),
	}
	l.ctx = xdp.NewContext(&l.md)
	for i, a := range actionSlots {
		l.invocations[i] = metrics.InvocationsTotal.WithLabelValues(label, a.String())
	}
	return l
}

// enqueue hands pkt to the lane without blocking. A full queue drops it.
func (l *Lane) enqueue(pkt core.RawPacket) bool {
	select {
	case l.queue <- pkt:
		return true
	default:
		l.queueDrops.Add(1)
		l.drops.Inc()
		return false
	}
}

// enqueueWait hands pkt to the lane, waiting while the queue is full.
func (l *Lane) enqueueWait(ctx context.Context, pkt core.RawPacket) error {
	select {
	case l.queue <- pkt:
		return nil
	default:
	}
	select {
	case l.queue <- pkt:
		return nil
	case <-ctx.Done():
		l.queueDrops.Add(1)
		l.drops.Inc()
		return ctx.Err()
	}
}

// run processes queued packets until the queue is closed and drained or
// ctx is cancelled.
func (l *Lane) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-l.queue:
			if !ok {
				return
			}
			l.invoke(pkt)
		}
	}
}

// invoke runs the program once over pkt. Verdicts outside the defined set
// count as aborted.
func (l *Lane) invoke(pkt core.RawPacket) core.Action {
	l.received.Add(1)

	l.md.Reset(pkt.Data)
	l.md.Lane = uint32(l.id)
	if pkt.InterfaceIndex > 0 {
		l.md.IngressIfindex = uint32(pkt.InterfaceIndex)
	}

	start := time.Now()
	action := l.program.Run(l.ctx)
	l.latency.Observe(time.Since(start).Seconds())

	if !action.Valid() {
		slog.Debug("program returned unknown action", "program", l.program.Name(), "lane", l.id, "action", action)
		action = core.ActionAborted
	}
	l.actions[action].Add(1)
	l.invocations[action].Inc()
	return action
}

// LaneStats is a snapshot of one lane's counters.
type LaneStats struct {
	Lane       int
	Received   uint64
	QueueDrops uint64
	Queued     int
	Actions    map[core.Action]uint64
}

func (l *Lane) stats() LaneStats {
	s := LaneStats{
		Lane:       l.id,
		Received:   l.received.Load(),
		QueueDrops: l.queueDrops.Load(),
		Queued:     len(l.queue),
		Actions:    make(map[core.Action]uint64, len(actionSlots)),
	}
	for i, a := range actionSlots {
		s.Actions[a] = l.actions[i].Load()
	}
	return s
}
