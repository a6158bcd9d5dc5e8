// Package daemon wires a source, the lane runtime, the event collector and
// the reporters into one process and manages their lifecycle.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/xdpwalk/internal/collector"
	"firestige.xyz/xdpwalk/internal/config"
	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/core/xdp"
	logpkg "firestige.xyz/xdpwalk/internal/log"
	"firestige.xyz/xdpwalk/internal/metrics"
	"firestige.xyz/xdpwalk/internal/program"
	"firestige.xyz/xdpwalk/internal/reporter"
	"firestige.xyz/xdpwalk/internal/reporter/console"
	"firestige.xyz/xdpwalk/internal/reporter/kafka"
	"firestige.xyz/xdpwalk/internal/runtime"
	"firestige.xyz/xdpwalk/internal/source"
	"firestige.xyz/xdpwalk/internal/source/afpacket"
	"firestige.xyz/xdpwalk/internal/source/file"
)

const (
	sourceChannelSize = 4096
	drainTimeout      = 10 * time.Second
)

// Daemon owns every component of one capture process.
type Daemon struct {
	config     *config.Config
	configPath string

	source    source.Source
	ring      *perf.Ring
	program   xdp.Program
	runtime   *runtime.Runtime
	collector *collector.Collector
	reporters []reporter.Reporter

	metricsServer *metrics.Server // nil if metrics disabled

	consoleOut io.Writer
	handleHUP  bool
}

// Option customises a Daemon.
type Option func(*Daemon)

// WithSource replaces the configured packet source.
func WithSource(s source.Source) Option {
	return func(d *Daemon) { d.source = s }
}

// WithReporters adds reporters beside the configured ones.
func WithReporters(rs ...reporter.Reporter) Option {
	return func(d *Daemon) { d.reporters = append(d.reporters, rs...) }
}

// WithConsoleOutput redirects the console reporter (default stdout).
func WithConsoleOutput(w io.Writer) Option {
	return func(d *Daemon) { d.consoleOut = w }
}

// WithReload enables SIGHUP log reloading from configPath.
func WithReload(configPath string) Option {
	return func(d *Daemon) {
		d.configPath = configPath
		d.handleHUP = configPath != ""
	}
}

// New builds every component from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{config: cfg}
	for _, opt := range opts {
		opt(d)
	}

	if d.source == nil {
		src, err := newSource(cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to create source: %w", err)
		}
		d.source = src
	}

	ring, err := perf.NewRing(cfg.Runtime.Lanes, cfg.Events.LaneCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create event ring: %w", err)
	}
	d.ring = ring

	prog, err := program.New(cfg.Program.Name, cfg.Program.Options, ring)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	d.program = prog

	strategy, err := runtime.NewDispatchStrategy(cfg.Runtime.Dispatch)
	if err != nil {
		return nil, err
	}
	rt, err := runtime.New(runtime.Config{
		Lanes:         cfg.Runtime.Lanes,
		QueueCapacity: cfg.Runtime.QueueCapacity,
		Strategy:      strategy,
		Program:       prog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	d.runtime = rt

	configured, err := newReporters(cfg.Reporters, d.consoleOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create reporters: %w", err)
	}
	d.reporters = append(configured, d.reporters...)
	d.collector = collector.New(ring, prog.Name(), d.reporters...)

	if cfg.Metrics.Enabled {
		d.metricsServer = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
	}
	return d, nil
}

func newSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Type {
	case file.Name:
		return file.New(file.Config{Path: cfg.File.Path, Loop: cfg.File.Loop})
	case afpacket.Name:
		return afpacket.New(afpacket.Config{
			Interface:    cfg.AFPacket.Interface,
			BPFFilter:    cfg.AFPacket.BPFFilter,
			SnapLen:      cfg.AFPacket.SnapLen,
			BufferSizeMB: cfg.AFPacket.BufferSizeMB,
			FanoutID:     cfg.AFPacket.FanoutID,
			FanoutType:   cfg.AFPacket.FanoutType,
			PollTimeout:  cfg.AFPacket.PollTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported source type %q", core.ErrConfigInvalid, cfg.Type)
	}
}

func newReporters(cfg config.ReportersConfig, consoleOut io.Writer) ([]reporter.Reporter, error) {
	var out []reporter.Reporter
	if cfg.Console.Enabled {
		r, err := console.New(console.Config{Format: cfg.Console.Format}, consoleOut)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if cfg.Kafka.Enabled {
		r, err := kafka.New(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  cfg.Kafka.Compression,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Run starts every component and blocks until the source is exhausted, ctx
// is cancelled or SIGINT/SIGTERM arrives. Queued packets and events are
// drained before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if d.metricsServer != nil {
		if err := d.metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}
	if d.handleHUP {
		go d.watchReload(ctx)
	}

	// Lanes always drain on shutdown, so they do not follow ctx.
	if err := d.runtime.Start(context.Background()); err != nil {
		return err
	}
	d.collector.Start(context.Background())

	// File sources wait for lane room; live sources drop on a full lane.
	block := d.source.Name() == file.Name
	packets := make(chan core.RawPacket, sourceChannelSize)
	var pump sync.WaitGroup
	pump.Add(1)
	go func() {
		defer pump.Done()
		for pkt := range packets {
			if block {
				d.runtime.SubmitWait(ctx, pkt)
			} else {
				d.runtime.Submit(pkt)
			}
		}
	}()

	slog.Info("daemon started",
		"source", d.source.Name(),
		"program", d.program.Name(),
		"lanes", d.runtime.Lanes(),
		"reporters", len(d.reporters))

	captureErr := d.source.Capture(ctx, packets)
	close(packets)
	pump.Wait()

	d.shutdown()
	if captureErr != nil {
		return fmt.Errorf("capture failed: %w", captureErr)
	}
	return nil
}

// shutdown stops components in data-flow order so that nothing in flight is
// lost: lanes drain, then the event ring, then reporters.
func (d *Daemon) shutdown() {
	slog.Info("initiating graceful shutdown")

	d.runtime.Stop()
	d.ring.Close()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	d.collector.Stop(drainCtx)

	for _, r := range d.reporters {
		if err := r.Close(); err != nil {
			slog.Error("error closing reporter", "reporter", r.Name(), "error", err)
		}
	}
	if err := d.source.Close(); err != nil {
		slog.Error("error closing source", "error", err)
	}
	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(context.Background()); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
	}

	s := d.Stats()
	slog.Info("daemon stopped",
		"received", s.Runtime.Received,
		"queue_drops", s.Runtime.QueueDrops,
		"events", s.Collector.Received,
		"events_reported", s.Collector.Reported)
}

// watchReload re-applies log settings on SIGHUP. Other settings need a
// restart.
func (d *Daemon) watchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := d.Reload(); err != nil {
				slog.Error("failed to reload config", "error", err)
			}
		}
	}
}

// Reload reloads the log configuration from the config file.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := config.LoadAndValidate(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}
	if err := logpkg.Init(newConfig.Log); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}
	d.config.Log = newConfig.Log

	slog.Info("configuration reloaded", "hot_reloaded", []string{"log"})
	return nil
}

// Stats aggregates component statistics.
type Stats struct {
	Source    source.Stats
	Runtime   runtime.Stats
	Events    []perf.LaneStats
	Collector collector.Stats
}

// Stats returns a snapshot of every component.
func (d *Daemon) Stats() Stats {
	return Stats{
		Source:    d.source.Stats(),
		Runtime:   d.runtime.Stats(),
		Events:    d.ring.Stats(),
		Collector: d.collector.Stats(),
	}
}
