// Package collector drains a perf ring and hands decoded events to reporters.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/metrics"
	"firestige.xyz/xdpwalk/internal/program"
	"firestige.xyz/xdpwalk/internal/reporter"
)

const flushTimeout = 5 * time.Second

// Collector runs one reader goroutine per ring lane.
type Collector struct {
	ring      *perf.Ring
	program   string
	reporters []reporter.Reporter

	cancel context.CancelFunc
	wg     sync.WaitGroup

	received     atomic.Uint64
	decodeErrors atomic.Uint64
	reported     atomic.Uint64
	reportErrors atomic.Uint64
}

// New creates a collector for events emitted by the named program.
func New(ring *perf.Ring, programName string, reporters ...reporter.Reporter) *Collector {
	return &Collector{
		ring:      ring,
		program:   programName,
		reporters: reporters,
	}
}

// Start launches the lane readers.
func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	for lane := 0; lane < c.ring.Lanes(); lane++ {
		c.wg.Add(1)
		go c.readLoop(ctx, lane)
	}
	slog.Info("collector started", "lanes", c.ring.Lanes(), "reporters", len(c.reporters))
}

// Wait blocks until every reader has returned, i.e. the ring was closed and
// drained or the context was cancelled.
func (c *Collector) Wait() { c.wg.Wait() }

// Stop waits for the readers to drain a closed ring, cancelling them once
// ctx expires, then flushes every reporter.
func (c *Collector) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("collector drain timed out", "error", ctx.Err())
	}
	if c.cancel != nil {
		c.cancel()
	}
	<-done

	// ctx may already be done after a drain timeout.
	flushCtx, cancelFlush := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancelFlush()
	for _, r := range c.reporters {
		if err := r.Flush(flushCtx); err != nil {
			slog.Error("reporter flush failed", "reporter", r.Name(), "error", err)
		}
	}
	slog.Info("collector stopped",
		"received", c.received.Load(),
		"reported", c.reported.Load(),
		"report_errors", c.reportErrors.Load())
}

func (c *Collector) readLoop(ctx context.Context, lane int) {
	defer c.wg.Done()
	for {
		rec, err := c.ring.Read(ctx, lane)
		if err != nil {
			if !errors.Is(err, core.ErrChannelClosed) && ctx.Err() == nil {
				slog.Error("ring read failed", "lane", lane, "error", err)
			}
			return
		}
		c.received.Add(1)

		ev, err := c.decode(rec)
		if err != nil {
			c.decodeErrors.Add(1)
			slog.Debug("event decode failed", "lane", lane, "error", err)
			continue
		}
		c.report(ctx, ev)
	}
}

func (c *Collector) decode(rec perf.Record) (*reporter.Event, error) {
	fe, captured, err := perf.Decode[program.FlowEvent](rec.RawSample)
	if err != nil {
		return nil, err
	}
	return &reporter.Event{
		Timestamp:     time.Now(),
		Program:       c.program,
		Lane:          rec.Lane,
		SrcIP:         netip.AddrFrom4(fe.Saddr),
		DstIP:         netip.AddrFrom4(fe.Daddr),
		SrcPort:       fe.Sport,
		DstPort:       fe.Dport,
		Protocol:      fe.Proto,
		Action:        core.Action(fe.Action),
		PacketLen:     fe.PacketLen,
		PayloadOffset: fe.PayloadOffset,
		TCPFlags:      fe.TCPFlags,
		Captured:      captured,
	}, nil
}

func (c *Collector) report(ctx context.Context, ev *reporter.Event) {
	for _, r := range c.reporters {
		if err := r.Report(ctx, ev); err != nil {
			c.reportErrors.Add(1)
			metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
			slog.Error("reporter failed", "reporter", r.Name(), "error", err)
			continue
		}
		c.reported.Add(1)
		metrics.EventsReportedTotal.WithLabelValues(r.Name()).Inc()
	}
}

// Stats represents collector statistics.
type Stats struct {
	Received     uint64
	DecodeErrors uint64
	Reported     uint64
	ReportErrors uint64
}

// Stats returns collector statistics.
func (c *Collector) Stats() Stats {
	return Stats{
		Received:     c.received.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Reported:     c.reported.Load(),
		ReportErrors: c.reportErrors.Load(),
	}
}
