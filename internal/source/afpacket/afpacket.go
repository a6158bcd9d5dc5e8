//go:build linux

package afpacket

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/metrics"
	"firestige.xyz/xdpwalk/internal/source"
)

// Source captures from one interface.
type Source struct {
	config Config

	frameSize int
	blockSize int
	numBlocks int

	handle *afpacket.TPacket

	packetsReceived atomic.Uint64
	packetsDropped  atomic.Uint64
	kernelDrops     atomic.Uint64
	readErrors      atomic.Uint64
}

const statsInterval = 1024

var _ source.Source = (*Source)(nil)

// New validates cfg and sizes the ring. The socket is opened by Capture.
func New(cfg Config) (*Source, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	frameSize, blockSize, numBlocks, err := ringGeometry(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return &Source{
		config:    cfg,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}, nil
}

// Name returns the source name.
func (s *Source) Name() string { return Name }

// Capture reads frames until ctx is cancelled. Frames are copied out of the
// ring because lanes process them after the next read. A full out channel
// drops the frame.
func (s *Source) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	if err := s.open(); err != nil {
		return err
	}
	defer s.Close()
	defer s.updateKernelStats()

	counter := metrics.SourcePacketsTotal.WithLabelValues(Name)
	slog.Info("afpacket capture started",
		"interface", s.config.Interface,
		"frame_size", s.frameSize,
		"block_size", s.blockSize,
		"num_blocks", s.numBlocks)

	for {
		if ctx.Err() != nil {
			slog.Info("afpacket capture stopped", "interface", s.config.Interface)
			return nil
		}

		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("afpacket capture stopped", "interface", s.config.Interface)
				return nil
			}
			// Poll timeouts land here as well.
			if err != afpacket.ErrTimeout {
				s.readErrors.Add(1)
			}
			continue
		}
		if s.packetsReceived.Add(1)%statsInterval == 0 {
			s.updateKernelStats()
		}
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
			return nil
		default:
			s.packetsDropped.Add(1)
		}
	}
}

func (s *Source) open() error {
	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.config.Interface),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(s.config.PollTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
	)
	if err != nil {
		return fmt.Errorf("failed to create TPacket handle on %s: %w", s.config.Interface, err)
	}
	s.handle = handle

	if s.config.FanoutID > 0 {
		if err := handle.SetFanout(fanoutType(s.config.FanoutType), s.config.FanoutID); err != nil {
			s.Close()
			return fmt.Errorf("failed to set fanout: %w", err)
		}
	}
	if s.config.BPFFilter != "" {
		if err := s.applyBPFFilter(); err != nil {
			s.Close()
			return err
		}
	}
	return nil
}

func (s *Source) applyBPFFilter() error {
	insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, s.config.SnapLen, s.config.BPFFilter)
	if err != nil {
		return fmt.Errorf("failed to compile BPF filter %q: %w", s.config.BPFFilter, err)
	}

	raw := make([]bpf.RawInstruction, len(insns))
	for i, insn := range insns {
		raw[i] = bpf.RawInstruction{Op: insn.Code, Jt: insn.Jt, Jf: insn.Jf, K: insn.K}
	}
	if err := s.handle.SetBPF(raw); err != nil {
		return fmt.Errorf("failed to set BPF: %w", err)
	}
	slog.Debug("BPF filter applied", "filter", s.config.BPFFilter, "instructions", len(raw))
	return nil
}

func fanoutType(name string) afpacket.FanoutType {
	switch name {
	case "lb":
		return afpacket.FanoutLoadBalance
	case "cpu":
		return afpacket.FanoutCPU
	case "rollover":
		return afpacket.FanoutRollover
	default:
		return afpacket.FanoutHashWithDefrag
	}
}

// updateKernelStats samples the socket's cumulative TPACKET_V3 counters.
func (s *Source) updateKernelStats() {
	if _, v3, err := s.handle.SocketStats(); err == nil {
		s.kernelDrops.Store(uint64(v3.Drops()))
	}
}

// Stats returns capture statistics, including kernel drops.
func (s *Source) Stats() source.Stats {
	return source.Stats{
		PacketsReceived: s.packetsReceived.Load(),
		PacketsDropped:  s.packetsDropped.Load() + s.kernelDrops.Load(),
		ReadErrors:      s.readErrors.Load(),
	}
}

// Close releases the socket.
func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}
