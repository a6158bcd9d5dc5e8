// Package source defines packet sources feeding the runtime.
package source

import (
	"context"

	"firestige.xyz/xdpwalk/internal/core"
)

// Source captures frames and writes them to out until ctx is cancelled or
// the source is exhausted. Capture returns nil in both cases.
type Source interface {
	Name() string
	Capture(ctx context.Context, out chan<- core.RawPacket) error
	Stats() Stats
	Close() error
}

// Stats represents capture statistics.
type Stats struct {
	PacketsReceived uint64 // Frames read from the underlying handle
	PacketsDropped  uint64 // Frames dropped by the kernel or the source
	ReadErrors      uint64
}
