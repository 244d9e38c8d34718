// Package notify delivers reachability changes to external HTTP endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/crimson-sun/updash/internal/monitor"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	maxRetries           = 3
)

// Option configures a Webhook.
type Option func(*Webhook)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(w *Webhook) { w.headers = h }
}

// WithBatchSize sets the number of changes accumulated before a flush. Default: 10.
func WithBatchSize(n int) Option {
	return func(w *Webhook) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(w *Webhook) { w.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.client.Timeout = d }
}

// WithBackoff sets the first retry delay; each retry doubles it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(w *Webhook) { w.backoff = d }
}

// WithTarget labels payloads with the probed host.
func WithTarget(target string) Option {
	return func(w *Webhook) { w.target = target }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(w *Webhook) { w.errFunc = f }
}

// Payload is one change as POSTed to the endpoint, inside a JSON array.
type Payload struct {
	Target string    `json:"target,omitempty"`
	At     int64     `json:"at"`
	Time   time.Time `json:"time"`
	Up     bool      `json:"up"`
	Status string    `json:"status"`
}

// Webhook POSTs batched changes to an HTTP endpoint as a JSON array.
// A batch is flushed when batchSize is reached or flushInterval elapses.
// 5xx responses are retried with exponential backoff.
type Webhook struct {
	client        *http.Client
	url           string
	target        string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	errFunc       func(error)
	mu            sync.Mutex
	pending       []Payload
	timer         *time.Timer
}

// New creates a Webhook targeting url.
func New(url string, opts ...Option) *Webhook {
	w := &Webhook{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write queues a change. A full batch is sent before Write returns.
func (w *Webhook) Write(_ context.Context, c monitor.Change) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := "down"
	if c.Up {
		status = "up"
	}
	w.pending = append(w.pending, Payload{
		Target: w.target,
		At:     c.At,
		Time:   time.UnixMilli(c.At).UTC(),
		Up:     c.Up,
		Status: status,
	})

	if len(w.pending) >= w.batchSize {
		return w.flushLocked()
	}

	if len(w.pending) == 1 {
		w.timer = time.AfterFunc(w.flushInterval, func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if err := w.flushLocked(); err != nil {
				w.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining changes and stops the timer.
func (w *Webhook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.pending) > 0 {
		return w.flushLocked()
	}
	return nil
}

// flushLocked sends the pending batch. Caller must hold w.mu.
func (w *Webhook) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	batch := w.pending
	w.pending = nil

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return w.postWithRetry(body)
}

func (w *Webhook) postWithRetry(body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.backoff << (attempt - 1))
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range w.headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
