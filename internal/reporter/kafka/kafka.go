// Package kafka implements the Kafka event reporter.
// Sends JSON-encoded events keyed by flow, with batching and compression.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/reporter"
)

// Name is the reporter name.
const Name = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      // required
	Topic        string        // required
	BatchSize    int           // optional, default 100
	BatchTimeout time.Duration // optional, default 100ms
	Compression  string        // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           // optional, default 3
}

// messageWriter is the subset of *kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reporter sends events to Kafka.
type Reporter struct {
	config Config
	writer messageWriter

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// New validates cfg and creates the Kafka writer. No connection is made
// until the first event is written.
func New(cfg Config) (*Reporter, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same flow, same partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Compression:  codec,
	}

	slog.Info("kafka reporter started",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"batch_size", cfg.BatchSize,
		"batch_timeout", cfg.BatchTimeout,
		"compression", cfg.Compression,
	)
	return &Reporter{config: cfg, writer: w}, nil
}

func withDefaults(cfg Config) (Config, error) {
	if len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("%w: kafka brokers is required", core.ErrConfigInvalid)
	}
	if cfg.Topic == "" {
		return cfg, fmt.Errorf("%w: kafka topic is required", core.ErrConfigInvalid)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.Compression == "" {
		cfg.Compression = defaultCompression
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return cfg, nil
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch name {
	case "none":
		return 0, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	default:
		return 0, fmt.Errorf("%w: invalid compression type: %s", core.ErrConfigInvalid, name)
	}
}

// Name returns the reporter name.
func (r *Reporter) Name() string { return Name }

// Report sends one event to Kafka.
func (r *Reporter) Report(ctx context.Context, ev *reporter.Event) error {
	msg, err := encode(ev)
	if err != nil {
		r.errorCount.Add(1)
		return err
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

func encode(ev *reporter.Event) (kafka.Message, error) {
	if ev == nil {
		return kafka.Message{}, fmt.Errorf("nil event")
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serialize event failed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.FlowKey()),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "program", Value: []byte(ev.Program)},
			{Key: "action", Value: []byte(ev.Action.String())},
		},
	}, nil
}

// Flush is a no-op: the synchronous writer has delivered every batch by the
// time Report returns.
func (r *Reporter) Flush(context.Context) error { return nil }

// Close flushes pending messages and closes the writer.
func (r *Reporter) Close() error {
	if err := r.writer.Close(); err != nil {
		slog.Error("error closing kafka writer", "error", err)
		return err
	}
	slog.Info("kafka reporter stopped",
		"total_reported", r.reportedCount.Load(),
		"total_errors", r.errorCount.Load(),
	)
	return nil
}
