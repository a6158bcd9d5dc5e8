// Package console implements the console event reporter.
// Writes one line per event, as JSON or human-readable text.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/reporter"
)

// Name is the reporter name.
const Name = "console"

// Config represents console reporter configuration.
type Config struct {
	Format string // "json" or "text", default "text"
}

// Reporter writes events to an io.Writer.
type Reporter struct {
	format string

	mu  sync.Mutex
	out io.Writer

	reportedCount atomic.Uint64
}

// New creates a console reporter writing to out (nil = stdout).
func New(cfg Config, out io.Writer) (*Reporter, error) {
	format := cfg.Format
	switch format {
	case "":
		format = "text"
	case "json", "text":
	default:
		return nil, fmt.Errorf("%w: invalid console format %q, must be json or text", core.ErrConfigInvalid, format)
	}
	if out == nil {
		out = os.Stdout
	}
	slog.Info("console reporter started", "format", format)
	return &Reporter{format: format, out: out}, nil
}

// Name returns the reporter name.
func (r *Reporter) Name() string { return Name }

// Report writes one event line.
func (r *Reporter) Report(_ context.Context, ev *reporter.Event) error {
	if ev == nil {
		return fmt.Errorf("nil event")
	}

	var line []byte
	if r.format == "json" {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("json marshal failed: %w", err)
		}
		line = append(data, '\n')
	} else {
		line = formatText(ev)
	}

	r.mu.Lock()
	_, err := r.out.Write(line)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

func formatText(ev *reporter.Event) []byte {
	line := fmt.Sprintf("[%s] %s %s:%d -> %s:%d proto=%s action=%s lane=%d len=%d",
		ev.Timestamp.Format("15:04:05.000"),
		ev.Program,
		ev.SrcIP, ev.SrcPort,
		ev.DstIP, ev.DstPort,
		ev.ProtocolName(),
		ev.Action,
		ev.Lane,
		ev.PacketLen,
	)
	if ev.TCPFlags != 0 {
		line += fmt.Sprintf(" flags=0x%02x", ev.TCPFlags)
	}
	if len(ev.Captured) > 0 {
		line += fmt.Sprintf(" captured=%d", len(ev.Captured))
	}
	return append([]byte(line), '\n')
}

// Reported returns the number of events written.
func (r *Reporter) Reported() uint64 { return r.reportedCount.Load() }

// Flush is a no-op; every Report writes through.
func (r *Reporter) Flush(context.Context) error { return nil }

// Close logs the final count. The writer is not closed.
func (r *Reporter) Close() error {
	slog.Info("console reporter stopped", "total_reported", r.reportedCount.Load())
	return nil
}
