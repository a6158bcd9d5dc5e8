// Package file replays pcap and pcapng files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/metrics"
	"firestige.xyz/xdpwalk/internal/source"
)

// Name is the source name.
const Name = "file"

// pcapng section header block type.
const ngSectionHeader = 0x0A0D0D0A

// Config represents file source configuration.
type Config struct {
	Path string // required
	Loop bool   // restart from the beginning at EOF
}

// PacketReader reads frames from a capture file.
type PacketReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads Ethernet frames from a capture file.
type Source struct {
	config Config

	packetsReceived atomic.Uint64
	readErrors      atomic.Uint64
}

var _ source.Source = (*Source)(nil)

// New creates a file source. The file is opened by Capture.
func New(cfg Config) (*Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: file source path is required", core.ErrConfigInvalid)
	}
	return &Source{config: cfg}, nil
}

// Name returns the source name.
func (s *Source) Name() string { return Name }

// Capture replays the file into out. Sends block, so a replay never loses
// frames before the runtime sees them.
func (s *Source) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	counter := metrics.SourcePacketsTotal.WithLabelValues(Name)
	for {
		n, err := s.replay(ctx, out, counter)
		if err != nil || ctx.Err() != nil {
			return err
		}
		if !s.config.Loop || n == 0 {
			slog.Info("file source finished", "path", s.config.Path, "packets", s.packetsReceived.Load())
			return nil
		}
	}
}

func (s *Source) replay(ctx context.Context, out chan<- core.RawPacket, counter prometheus.Counter) (int, error) {
	f, err := os.Open(s.config.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open capture file %s: %w", s.config.Path, err)
	}
	defer f.Close()

	r, err := OpenReader(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.config.Path, err)
	}
	if lt := r.LinkType(); lt != layers.LinkTypeEthernet {
		return 0, fmt.Errorf("%s: unsupported link type %s", s.config.Path, lt)
	}

	n := 0
	for {
		if ctx.Err() != nil {
			return n, nil
		}
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			s.readErrors.Add(1)
			return n, fmt.Errorf("failed to read packet: %w", err)
		}
		n++
		s.packetsReceived.Add(1)
		counter.Inc()

		pkt := core.RawPacket{
			Data:           data,
			Timestamp:      ci.Timestamp,
			CaptureLen:     uint32(ci.CaptureLength),
			OrigLen:        uint32(ci.Length),
			InterfaceIndex: ci.InterfaceIndex,
		}
		select {
		case out <- pkt:
		case <-ctx.Done():
			return n, nil
		}
	}
}

// OpenReader returns a pcap or pcapng reader depending on the file magic.
func OpenReader(r io.Reader) (PacketReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if binary.LittleEndian.Uint32(magic) == ngSectionHeader {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

// Stats returns capture statistics.
func (s *Source) Stats() source.Stats {
	return source.Stats{
		PacketsReceived: s.packetsReceived.Load(),
		ReadErrors:      s.readErrors.Load(),
	}
}

// Close is a no-op; Capture closes the file it opens.
func (s *Source) Close() error { return nil }
