package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultLokiBatchSize     = 100
	defaultLokiFlushInterval = 5 * time.Second
	lokiMaxRetries           = 3
	lokiRetryBaseDelay       = 100 * time.Millisecond
)

var errLokiClosed = errors.New("loki writer is closed")

// LokiConfig contains configuration for the Loki writer.
type LokiConfig struct {
	Endpoint      string            // Loki push endpoint URL
	Labels        map[string]string // Stream labels, job defaults to xdpwalk
	BatchSize     int               // Log lines per push, default 100
	FlushInterval time.Duration     // Push interval for partial batches, default 5s
}

// LokiWriter is an io.Writer that batches log lines and pushes them to
// Grafana Loki. Pushes happen on a background goroutine; Write never waits
// for the network.
type LokiWriter struct {
	endpoint      string
	labels        map[string]string
	batchSize     int
	flushInterval time.Duration
	httpClient    *http.Client

	mu     sync.Mutex
	batch  []lokiEntry
	closed bool

	full    chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	pushed atomic.Uint64
	failed atomic.Uint64
}

type lokiEntry struct {
	timestamp time.Time
	line      string
}

// lokiPushRequest is the body of POST /loki/api/v1/push.
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// NewLokiWriter creates a Loki writer and starts its flusher.
func NewLokiWriter(cfg LokiConfig) (*LokiWriter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("loki output requires 'endpoint' field")
	}
	if cfg.FlushInterval < 0 {
		return nil, fmt.Errorf("invalid flush interval: %v", cfg.FlushInterval)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultLokiBatchSize
	}
	interval := cfg.FlushInterval
	if interval == 0 {
		interval = defaultLokiFlushInterval
	}

	labels := make(map[string]string, len(cfg.Labels)+1)
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	if _, ok := labels["job"]; !ok {
		labels["job"] = "xdpwalk"
	}

	lw := &LokiWriter{
		endpoint:      cfg.Endpoint,
		labels:        labels,
		batchSize:     batchSize,
		flushInterval: interval,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		batch:         make([]lokiEntry, 0, batchSize),
		full:          make(chan struct{}, 1),
		closeCh:       make(chan struct{}),
	}

	lw.wg.Add(1)
	go lw.flusher()
	return lw, nil
}

// Write implements io.Writer. p is copied; slog reuses its buffers.
func (lw *LokiWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.closed {
		return 0, errLokiClosed
	}
	lw.batch = append(lw.batch, lokiEntry{
		timestamp: time.Now(),
		line:      string(bytes.TrimRight(p, "\n")),
	})
	if len(lw.batch) >= lw.batchSize {
		select {
		case lw.full <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Close stops the flusher and pushes whatever is still batched.
func (lw *LokiWriter) Close() error {
	lw.mu.Lock()
	if lw.closed {
		lw.mu.Unlock()
		return nil
	}
	lw.closed = true
	lw.mu.Unlock()

	close(lw.closeCh)
	lw.wg.Wait()
	return lw.flush()
}

// Pushed returns the number of lines accepted by Loki.
func (lw *LokiWriter) Pushed() uint64 { return lw.pushed.Load() }

// Failed returns the number of lines dropped after exhausting retries.
func (lw *LokiWriter) Failed() uint64 { return lw.failed.Load() }

func (lw *LokiWriter) flusher() {
	defer lw.wg.Done()

	ticker := time.NewTicker(lw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-lw.full:
		case <-lw.closeCh:
			return
		}
		// Failures are counted in failed.
		_ = lw.flush()
	}
}

// flush takes the current batch and pushes it outside the lock.
func (lw *LokiWriter) flush() error {
	lw.mu.Lock()
	entries := lw.batch
	lw.batch = make([]lokiEntry, 0, lw.batchSize)
	lw.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	values := make([][2]string, len(entries))
	for i, e := range entries {
		values[i] = [2]string{strconv.FormatInt(e.timestamp.UnixNano(), 10), e.line}
	}
	data, err := json.Marshal(lokiPushRequest{
		Streams: []lokiStream{{Stream: lw.labels, Values: values}},
	})
	if err != nil {
		lw.failed.Add(uint64(len(entries)))
		return fmt.Errorf("failed to marshal loki request: %w", err)
	}

	if err := lw.sendWithRetry(data); err != nil {
		lw.failed.Add(uint64(len(entries)))
		return err
	}
	lw.pushed.Add(uint64(len(entries)))
	return nil
}

// sendWithRetry pushes data with exponential backoff.
func (lw *LokiWriter) sendWithRetry(data []byte) error {
	var lastErr error
	for attempt := 0; attempt < lokiMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(lokiRetryBaseDelay << (attempt - 1))
		}
		if lastErr = lw.send(data); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("loki push failed after %d retries: %w", lokiMaxRetries, lastErr)
}

func (lw *LokiWriter) send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lw.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lw.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("loki push failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}
