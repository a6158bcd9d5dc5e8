// Package log implements structured logging using slog.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/xdpwalk/internal/config"
)

var (
	mu     sync.Mutex
	active io.Closer = closers(nil)
)

// Init initializes the global logger based on configuration. Logs go to
// stderr so that event output on stdout stays machine-readable. Outputs
// opened by a previous Init are closed once the new logger is installed.
func Init(cfg config.LogConfig) error {
	logger, c, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := active
	active = c
	slog.SetDefault(logger)
	mu.Unlock()

	if err := prev.Close(); err != nil {
		slog.Warn("failed to close previous log outputs", "error", err)
	}
	return nil
}

// Close flushes and closes the outputs opened by Init.
func Close() error {
	mu.Lock()
	c := active
	active = closers(nil)
	mu.Unlock()
	return c.Close()
}

// New builds a logger writing to console plus the configured file and Loki
// outputs. The returned Closer releases those outputs.
func New(cfg config.LogConfig, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writers := []io.Writer{console}
	var opened closers

	if cfg.Outputs.File.Enabled {
		w, err := createFileWriter(cfg.Outputs.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, w)
		opened = append(opened, w)
	}

	if cfg.Outputs.Loki.Enabled {
		w, err := createLokiWriter(cfg.Outputs.Loki)
		if err != nil {
			opened.Close()
			return nil, nil, fmt.Errorf("failed to create loki output: %w", err)
		}
		writers = append(writers, w)
		opened = append(opened, w)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		opened.Close()
		return nil, nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}
	return slog.New(handler), opened, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parseLevel converts string level to slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.FileOutputConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}

// createLokiWriter creates a Loki writer.
func createLokiWriter(lc config.LokiOutputConfig) (*LokiWriter, error) {
	return NewLokiWriter(LokiConfig{
		Endpoint:      lc.Endpoint,
		Labels:        lc.Labels,
		BatchSize:     lc.BatchSize,
		FlushInterval: lc.BatchTimeout,
	})
}
