package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/updash/internal/model"
	"github.com/crimson-sun/updash/internal/render"
)

const (
	defaultBufferSize   = 1
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the number of pending series. Default: 1.
func WithBufferSize(n int) Option {
	return func(a *Async) {
		if n > 0 {
			a.bufSize = n
		}
	}
}

// WithOnError sets the callback invoked when the inner renderer fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// Async moves rendering off the caller's goroutine. When the buffer is full
// the oldest pending series is discarded: a newer series always supersedes it,
// so the last render reflects the latest state.
type Async struct {
	inner     render.Renderer
	ch        chan model.TimeSeries
	done      chan struct{}
	errFunc   func(error)
	bufSize   int
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// New wraps inner and starts the drain goroutine.
func New(inner render.Renderer, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		errFunc: func(err error) { slog.Warn("async render error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.TimeSeries, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Render queues a private copy of ts and returns immediately.
func (a *Async) Render(_ context.Context, ts model.TimeSeries) error {
	ts = ts.Clone()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	for {
		select {
		case a.ch <- ts:
			return nil
		default:
		}
		select {
		case <-a.ch:
			slog.Debug("async render superseded pending series")
		default:
		}
	}
}

// Close stops accepting series, waits for pending ones (bounded), then closes
// the inner renderer.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()

		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("async render drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for ts := range a.ch {
		if err := a.inner.Render(context.Background(), ts); err != nil {
			a.errFunc(err)
		}
	}
}
