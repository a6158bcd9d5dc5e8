// Package reporter defines the event record handed to reporters and the
// Reporter interface they implement.
package reporter

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"firestige.xyz/xdpwalk/internal/core"
)

// Event is one decoded program event.
type Event struct {
	Timestamp     time.Time   `json:"timestamp"`
	Program       string      `json:"program"`
	Lane          int         `json:"lane"`
	SrcIP         netip.Addr  `json:"src_ip"`
	DstIP         netip.Addr  `json:"dst_ip"`
	SrcPort       uint16      `json:"src_port"`
	DstPort       uint16      `json:"dst_port"`
	Protocol      uint8       `json:"protocol"`
	Action        core.Action `json:"action"`
	PacketLen     uint32      `json:"packet_len"`
	PayloadOffset uint32      `json:"payload_offset"`
	TCPFlags      uint8       `json:"tcp_flags,omitempty"`
	Captured      []byte      `json:"captured,omitempty"`
}

// FlowKey identifies the event's flow, "src:port-dst:port".
func (e *Event) FlowKey() string {
	return fmt.Sprintf("%s:%d-%s:%d", e.SrcIP, e.SrcPort, e.DstIP, e.DstPort)
}

// ProtocolName returns "tcp", "udp" or the protocol number.
func (e *Event) ProtocolName() string {
	switch e.Protocol {
	case 6:
		return "tcp"
	case 17:
		return "udp"
	default:
		return fmt.Sprintf("%d", e.Protocol)
	}
}

// Reporter delivers events to an external system.
type Reporter interface {
	// Name returns the reporter name for logging/metrics.
	Name() string

	// Report sends one event. Implementations must be safe for concurrent use.
	Report(ctx context.Context, ev *Event) error

	// Flush forces buffered events out.
	Flush(ctx context.Context) error

	// Close flushes and releases resources.
	Close() error
}
