// Package program contains the built-in packet programs.
package program

import (
	"errors"
	"log/slog"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/core/xdp"
	"firestige.xyz/xdpwalk/internal/metrics"
)

// FlowEvent is the fixed-layout record the built-in programs emit.
type FlowEvent struct {
	Saddr         [4]byte
	Daddr         [4]byte
	Sport         uint16
	Dport         uint16
	Proto         uint8
	Action        uint8
	Lane          uint16
	PacketLen     uint32
	PayloadOffset uint32
	TCPFlags      uint8
	_             [3]byte
}

// newFlowEvent fills a FlowEvent from an already validated transport header.
func newFlowEvent(ctx *xdp.Context, tr xdp.Transport, action core.Action) FlowEvent {
	ev := FlowEvent{
		Sport:     tr.Source(),
		Dport:     tr.Dest(),
		Proto:     tr.Protocol(),
		Action:    uint8(action),
		Lane:      uint16(ctx.Lane()),
		PacketLen: ctx.Len(),
	}
	if ip, ok := ctx.NetworkHeader(); ok {
		ev.Saddr = ip.SaddrRaw()
		ev.Daddr = ip.DaddrRaw()
	}
	if data, ok := ctx.Payload(); ok {
		ev.PayloadOffset = data.Offset()
	}
	if tcp, ok := tr.TCP(); ok {
		ev.TCPFlags = tcp.Flags()
	}
	return ev
}

// emitter wraps a FlowEvent map with per-program accounting. A nil map
// disables events.
type emitter struct {
	program string
	events  *perf.PerfMap[FlowEvent]
	capture uint32
}

func newEmitter(program string, ring *perf.Ring, capture uint32) (emitter, error) {
	e := emitter{program: program, capture: capture}
	if ring == nil {
		return e, nil
	}
	m, err := perf.NewPerfMap[FlowEvent](ring)
	if err != nil {
		return e, err
	}
	e.events = m
	return e, nil
}

// emit never changes the verdict; failures are counted and logged at debug.
func (e emitter) emit(ctx *xdp.Context, ev FlowEvent) {
	if e.events == nil {
		return
	}
	err := e.events.Insert(ctx, ev, e.capture)
	if err == nil {
		metrics.EventsEmittedTotal.WithLabelValues(e.program).Inc()
		return
	}

	reason := "error"
	switch {
	case errors.Is(err, core.ErrChannelFull):
		reason = "full"
	case errors.Is(err, core.ErrChannelClosed):
		reason = "closed"
	case errors.Is(err, core.ErrLaneOutOfRange):
		reason = "lane"
	}
	metrics.EventsLostTotal.WithLabelValues(e.program, reason).Inc()
	slog.Debug("event dropped", "program", e.program, "lane", ctx.Lane(), "error", err)
}
