// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	goruntime "runtime"
	"time"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/program"
)

// Config represents the top-level configuration.
// Maps to the `xdpwalk:` root key in YAML.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Source    SourceConfig    `mapstructure:"source" yaml:"source"`
	Runtime   RuntimeConfig   `mapstructure:"runtime" yaml:"runtime"`
	Events    EventsConfig    `mapstructure:"events" yaml:"events"`
	Program   ProgramConfig   `mapstructure:"program" yaml:"program"`
	Reporters ReportersConfig `mapstructure:"reporters" yaml:"reporters"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format  string           `mapstructure:"format" yaml:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
	Loki LokiOutputConfig `mapstructure:"loki" yaml:"loki"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// LokiOutputConfig configures Grafana Loki log output.
type LokiOutputConfig struct {
	Enabled      bool              `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string            `mapstructure:"endpoint" yaml:"endpoint"`
	Labels       map[string]string `mapstructure:"labels" yaml:"labels,omitempty"`
	BatchSize    int               `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout time.Duration     `mapstructure:"batch_timeout" yaml:"batch_timeout"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Source ───

// SourceConfig selects and configures the packet source.
type SourceConfig struct {
	Type     string           `mapstructure:"type" yaml:"type"` // file | afpacket
	File     FileSourceConfig `mapstructure:"file" yaml:"file"`
	AFPacket AFPacketConfig   `mapstructure:"afpacket" yaml:"afpacket"`
}

// FileSourceConfig configures pcap/pcapng replay.
type FileSourceConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	Loop bool   `mapstructure:"loop" yaml:"loop"`
}

// AFPacketConfig configures live capture.
type AFPacketConfig struct {
	Interface    string        `mapstructure:"interface" yaml:"interface"`
	BPFFilter    string        `mapstructure:"bpf_filter" yaml:"bpf_filter"`
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	FanoutID     uint16        `mapstructure:"fanout_id" yaml:"fanout_id"`     // 0 = no fanout
	FanoutType   string        `mapstructure:"fanout_type" yaml:"fanout_type"` // hash | lb | cpu | rollover
	PollTimeout  time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
}

// ─── Runtime ───

// RuntimeConfig configures the lanes.
type RuntimeConfig struct {
	Lanes         int    `mapstructure:"lanes" yaml:"lanes"` // 0 = GOMAXPROCS
	QueueCapacity int    `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	Dispatch      string `mapstructure:"dispatch" yaml:"dispatch"` // flow-hash | round-robin | consistent-hash
}

// EventsConfig configures the event channel. It has one lane per runtime lane.
type EventsConfig struct {
	LaneCapacity int `mapstructure:"lane_capacity" yaml:"lane_capacity"`
}

// ProgramConfig selects the packet program.
type ProgramConfig struct {
	Name    string         `mapstructure:"name" yaml:"name"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// ─── Reporters ───

// ReportersConfig configures event reporters.
type ReportersConfig struct {
	Console ConsoleReporterConfig `mapstructure:"console" yaml:"console"`
	Kafka   KafkaReporterConfig   `mapstructure:"kafka" yaml:"kafka"`
}

// ConsoleReporterConfig configures the console reporter.
type ConsoleReporterConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Format  string `mapstructure:"format" yaml:"format"` // json | text
}

// KafkaReporterConfig configures the Kafka reporter.
type KafkaReporterConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Compression  string        `mapstructure:"compression" yaml:"compression"` // none | gzip | snappy | lz4 | zstd
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return invalid("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}
	if loki := cfg.Log.Outputs.Loki; loki.Enabled {
		if loki.Endpoint == "" {
			return invalid("log.outputs.loki.endpoint is required when loki output is enabled")
		}
		if loki.BatchSize < 0 || loki.BatchTimeout < 0 {
			return invalid("log.outputs.loki batch_size and batch_timeout must not be negative")
		}
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics.enabled=true")
	}

	// ── Source ──
	switch cfg.Source.Type {
	case "file":
		if cfg.Source.File.Path == "" {
			return invalid("source.file.path is required for source.type=file")
		}
	case "afpacket":
		if cfg.Source.AFPacket.Interface == "" {
			return invalid("source.afpacket.interface is required for source.type=afpacket")
		}
	default:
		return invalid("unsupported source.type: %q (must be file/afpacket)", cfg.Source.Type)
	}

	// ── Runtime ──
	if cfg.Runtime.Lanes < 0 {
		return invalid("runtime.lanes must not be negative, got %d", cfg.Runtime.Lanes)
	}
	if cfg.Runtime.Lanes == 0 {
		cfg.Runtime.Lanes = goruntime.GOMAXPROCS(0)
	}
	if cfg.Runtime.QueueCapacity <= 0 {
		return invalid("runtime.queue_capacity must be positive, got %d", cfg.Runtime.QueueCapacity)
	}
	switch cfg.Runtime.Dispatch {
	case "flow-hash", "round-robin", "consistent-hash":
	default:
		return invalid("unsupported runtime.dispatch: %q (must be flow-hash/round-robin/consistent-hash)", cfg.Runtime.Dispatch)
	}

	// ── Events ──
	if cfg.Events.LaneCapacity <= 0 {
		return invalid("events.lane_capacity must be positive, got %d", cfg.Events.LaneCapacity)
	}

	// ── Program ──
	known := false
	for _, name := range program.Names() {
		if name == cfg.Program.Name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q (available: %v)", core.ErrUnknownProgram, cfg.Program.Name, program.Names())
	}

	// ── Reporters ──
	if c := cfg.Reporters.Console; c.Enabled && c.Format != "json" && c.Format != "text" {
		return invalid("invalid reporters.console.format: %s (must be json/text)", c.Format)
	}
	if k := cfg.Reporters.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return invalid("reporters.kafka.brokers is required when reporters.kafka.enabled=true")
		}
		if k.Topic == "" {
			return invalid("reporters.kafka.topic is required when reporters.kafka.enabled=true")
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
}
