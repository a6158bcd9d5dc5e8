package program

import (
	"fmt"
	"math"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/core/xdp"
)

// PortFilterName is the registry name of the port filter.
const PortFilterName = "portfilter"

// PortFilterConfig configures PortFilter.
type PortFilterConfig struct {
	Ports        []int    `mapstructure:"ports"`         // 0-65535
	MatchSource  bool     `mapstructure:"match_source"`  // also match the source port
	Protocols    []string `mapstructure:"protocols"`     // tcp / udp, empty = both
	Verdict      string   `mapstructure:"verdict"`       // action for matches, default drop
	CaptureBytes uint32   `mapstructure:"capture_bytes"` // packet bytes attached to each event
}

// PortFilter returns the configured verdict for TCP/UDP packets hitting a
// listed port and emits a FlowEvent for each of them. Everything else,
// including packets the walker cannot classify, passes.
type PortFilter struct {
	ports   map[uint16]struct{}
	tcp     bool
	udp     bool
	source  bool
	verdict core.Action
	events  emitter
}

// NewPortFilter builds a PortFilter emitting to ring (nil disables events).
func NewPortFilter(cfg PortFilterConfig, ring *perf.Ring) (*PortFilter, error) {
	verdict := core.ActionDrop
	if cfg.Verdict != "" {
		a, err := core.ParseAction(cfg.Verdict)
		if err != nil {
			return nil, err
		}
		verdict = a
	}

	p := &PortFilter{
		ports:   make(map[uint16]struct{}, len(cfg.Ports)),
		source:  cfg.MatchSource,
		verdict: verdict,
	}
	for _, port := range cfg.Ports {
		if port < 0 || port > math.MaxUint16 {
			return nil, fmt.Errorf("%w: portfilter port %d out of range", core.ErrConfigInvalid, port)
		}
		p.ports[uint16(port)] = struct{}{}
	}

	if len(cfg.Protocols) == 0 {
		p.tcp, p.udp = true, true
	}
	for _, proto := range cfg.Protocols {
		switch proto {
		case "tcp":
			p.tcp = true
		case "udp":
			p.udp = true
		default:
			return nil, fmt.Errorf("%w: portfilter protocol %q (must be tcp/udp)", core.ErrConfigInvalid, proto)
		}
	}

	events, err := newEmitter(PortFilterName, ring, cfg.CaptureBytes)
	if err != nil {
		return nil, err
	}
	p.events = events
	return p, nil
}

// Name implements xdp.Program.
func (p *PortFilter) Name() string { return PortFilterName }

// Run implements xdp.Program.
func (p *PortFilter) Run(ctx *xdp.Context) core.Action {
	tr, ok := ctx.TransportHeader()
	if !ok {
		return core.ActionPass
	}
	if !p.matches(tr) {
		return core.ActionPass
	}

	p.events.emit(ctx, newFlowEvent(ctx, tr, p.verdict))
	return p.verdict
}

func (p *PortFilter) matches(tr xdp.Transport) bool {
	switch tr.Kind() {
	case xdp.TransportTCP:
		if !p.tcp {
			return false
		}
	case xdp.TransportUDP:
		if !p.udp {
			return false
		}
	}
	if _, hit := p.ports[tr.Dest()]; hit {
		return true
	}
	if p.source {
		_, hit := p.ports[tr.Source()]
		return hit
	}
	return false
}
