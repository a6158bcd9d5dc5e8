package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// rootKey is the YAML root wrapper; env vars use the XDPWALK_ prefix.
const rootKey = "xdpwalk"

// configRoot is the top-level wrapper matching the YAML structure `xdpwalk: ...`.
type configRoot struct {
	XDPWalk Config `mapstructure:"xdpwalk" yaml:"xdpwalk"`
}

// Load loads configuration from file. An empty path yields the defaults plus
// environment overrides (e.g. XDPWALK_LOG_LEVEL). The result is not
// validated; callers adjust it and then call ValidateAndApplyDefaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `xdpwalk.` key prefix maps to `XDPWALK_` via the key replacer
	// (key "xdpwalk.log.level" → env "XDPWALK_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &root.XDPWalk, nil
}

// LoadAndValidate loads configuration from file and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "xdpwalk." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	def := func(key string, value any) { v.SetDefault(rootKey+"."+key, value) }

	// Log defaults
	def("log.level", "info")
	def("log.format", "json")
	def("log.outputs.file.enabled", false)
	def("log.outputs.file.path", "/var/log/xdpwalk/xdpwalk.log")
	def("log.outputs.file.rotation.max_size_mb", 100)
	def("log.outputs.file.rotation.max_age_days", 30)
	def("log.outputs.file.rotation.max_backups", 5)
	def("log.outputs.file.rotation.compress", true)
	def("log.outputs.loki.enabled", false)
	def("log.outputs.loki.endpoint", "http://localhost:3100/loki/api/v1/push")
	def("log.outputs.loki.batch_size", 100)
	def("log.outputs.loki.batch_timeout", "5s")

	// Metrics defaults
	def("metrics.enabled", true)
	def("metrics.listen", ":9092")
	def("metrics.path", "/metrics")

	// Source defaults
	def("source.type", "file")
	def("source.file.path", "")
	def("source.file.loop", false)
	def("source.afpacket.interface", "")
	def("source.afpacket.bpf_filter", "")
	def("source.afpacket.snap_len", 65535)
	def("source.afpacket.buffer_size_mb", 64)
	def("source.afpacket.fanout_id", 0)
	def("source.afpacket.fanout_type", "hash")
	def("source.afpacket.poll_timeout", "100ms")

	// Runtime defaults
	def("runtime.lanes", 0)
	def("runtime.queue_capacity", 4096)
	def("runtime.dispatch", "flow-hash")
	def("events.lane_capacity", 1024)

	// Program defaults
	def("program.name", "pass")

	// Reporter defaults
	def("reporters.console.enabled", true)
	def("reporters.console.format", "text")
	def("reporters.kafka.enabled", false)
	def("reporters.kafka.topic", "xdpwalk-events")
	def("reporters.kafka.batch_size", 100)
	def("reporters.kafka.batch_timeout", "100ms")
	def("reporters.kafka.compression", "snappy")
	def("reporters.kafka.max_attempts", 3)
}

// Dump renders cfg as YAML under the `xdpwalk:` root key.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(configRoot{XDPWalk: *cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
