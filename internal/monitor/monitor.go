// Package monitor probes a network target on a fixed interval and reports
// each change of reachability.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/crimson-sun/updash/internal/model"
)

// Change is a transition in reachability.
type Change struct {
	At int64 // Unix milliseconds
	Up bool
}

// Sample converts the change to a series sample.
func (c Change) Sample() model.Sample {
	st := model.Down
	if c.Up {
		st = model.Up
	}
	return model.Sample{Timestamp: c.At, Status: st}
}

// Prober reports whether target answered a single probe.
type Prober interface {
	Probe(ctx context.Context, target string) (bool, error)
}

// Recorder persists changes before they are announced.
type Recorder interface {
	Record(sample model.Sample) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the probe interval. Default: 500ms.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRecorder persists every change before it is emitted.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithBuffer sets the capacity of the change channel. Default: 16.
func WithBuffer(n int) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.buffer = n
		}
	}
}

// Monitor detects reachability changes of one target.
type Monitor struct {
	prober   Prober
	target   string
	interval time.Duration
	recorder Recorder
	now      func() time.Time
	buffer   int

	changes chan Change
	up      bool
}

// New creates a Monitor. The target is assumed down until a probe succeeds.
func New(p Prober, target string, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   p,
		target:   target,
		interval: 500 * time.Millisecond,
		now:      time.Now,
		buffer:   16,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.changes = make(chan Change, m.buffer)
	return m
}

// Changes returns the channel changes are delivered on. It is closed when
// Run returns.
func (m *Monitor) Changes() <-chan Change {
	return m.changes
}

// Run probes until ctx is cancelled. Changes are dropped rather than
// blocking the probe loop when nobody is reading.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.changes)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c, ok := m.check(ctx); ok {
				m.emit(c)
			}
		}
	}
}

func (m *Monitor) check(ctx context.Context) (Change, bool) {
	up, err := m.prober.Probe(ctx, m.target)
	if err != nil {
		if ctx.Err() != nil {
			return Change{}, false
		}
		slog.Warn("probe failed", "target", m.target, "error", err)
		up = false
	}
	if up == m.up {
		return Change{}, false
	}
	m.up = up

	c := Change{At: m.now().UnixMilli(), Up: up}
	if m.recorder != nil {
		if err := m.recorder.Record(c.Sample()); err != nil {
			slog.Error("failed to record change", "error", err)
		}
	}
	slog.Info("reachability changed", "target", m.target, "up", up)
	return c, true
}

func (m *Monitor) emit(c Change) {
	select {
	case m.changes <- c:
	default:
		slog.Debug("change dropped, no reader", "at", c.At)
	}
}
