// Package afpacket captures live traffic through a TPACKET_V3 ring (linux).
package afpacket

import (
	"fmt"
	"time"

	"firestige.xyz/xdpwalk/internal/core"
)

// Name is the source name.
const Name = "afpacket"

const (
	defaultSnapLen      = 65535
	defaultBufferSizeMB = 64
	defaultPollTimeout  = 100 * time.Millisecond
	defaultFanoutType   = "hash"
)

// Config represents AF_PACKET source configuration.
type Config struct {
	Interface    string        // required
	BPFFilter    string        // optional, tcpdump syntax
	SnapLen      int           // optional, default 65535
	BufferSizeMB int           // optional, ring size, default 64
	FanoutID     uint16        // optional, 0 disables fanout
	FanoutType   string        // optional: hash|lb|cpu|rollover, default hash
	PollTimeout  time.Duration // optional, default 100ms
}

func (c Config) withDefaults() (Config, error) {
	if c.Interface == "" {
		return c, fmt.Errorf("%w: afpacket interface is required", core.ErrConfigInvalid)
	}
	if c.SnapLen <= 0 {
		c.SnapLen = defaultSnapLen
	}
	if c.BufferSizeMB <= 0 {
		c.BufferSizeMB = defaultBufferSizeMB
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.FanoutType == "" {
		c.FanoutType = defaultFanoutType
	}
	switch c.FanoutType {
	case "hash", "lb", "cpu", "rollover":
	default:
		return c, fmt.Errorf("%w: unknown fanout type %q", core.ErrConfigInvalid, c.FanoutType)
	}
	return c, nil
}
