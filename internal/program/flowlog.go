package program

import (
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/core/xdp"
)

// FlowLogName is the registry name of the flow logger.
const FlowLogName = "flowlog"

const (
	defaultFlowTTL     = 30 * time.Second
	defaultFlowCleanup = time.Minute
	flowKeyLen         = 13
)

// FlowLogConfig configures FlowLog.
type FlowLogConfig struct {
	FlowTTL      time.Duration `mapstructure:"flow_ttl"`      // silence window per 5-tuple, default 30s
	CaptureBytes uint32        `mapstructure:"capture_bytes"` // packet bytes attached to each event
}

// FlowLog passes every packet and emits one FlowEvent for the first packet
// of each TCP/UDP 5-tuple seen within FlowTTL.
type FlowLog struct {
	seen   *cache.Cache
	events emitter
}

// NewFlowLog builds a FlowLog emitting to ring (nil disables events).
func NewFlowLog(cfg FlowLogConfig, ring *perf.Ring) (*FlowLog, error) {
	ttl := cfg.FlowTTL
	if ttl <= 0 {
		ttl = defaultFlowTTL
	}
	events, err := newEmitter(FlowLogName, ring, cfg.CaptureBytes)
	if err != nil {
		return nil, err
	}
	return &FlowLog{
		seen:   cache.New(ttl, defaultFlowCleanup),
		events: events,
	}, nil
}

// Name implements xdp.Program.
func (f *FlowLog) Name() string { return FlowLogName }

// Run implements xdp.Program.
func (f *FlowLog) Run(ctx *xdp.Context) core.Action {
	tr, ok := ctx.TransportHeader()
	if !ok {
		return core.ActionPass
	}
	ev := newFlowEvent(ctx, tr, core.ActionPass)

	// Add fails when the key is present and unexpired.
	if err := f.seen.Add(flowKey(ev), struct{}{}, cache.DefaultExpiration); err != nil {
		return core.ActionPass
	}
	f.events.emit(ctx, ev)
	return core.ActionPass
}

// Flows returns the number of 5-tuples currently remembered.
func (f *FlowLog) Flows() int { return f.seen.ItemCount() }

func flowKey(ev FlowEvent) string {
	var k [flowKeyLen]byte
	copy(k[0:4], ev.Saddr[:])
	copy(k[4:8], ev.Daddr[:])
	k[8], k[9] = byte(ev.Sport>>8), byte(ev.Sport)
	k[10], k[11] = byte(ev.Dport>>8), byte(ev.Dport)
	k[12] = ev.Proto
	return string(k[:])
}
