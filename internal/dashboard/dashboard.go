package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/updash/internal/model"
	"github.com/crimson-sun/updash/internal/protocol"
	"github.com/crimson-sun/updash/internal/render"
	"github.com/crimson-sun/updash/internal/series"
	"github.com/crimson-sun/updash/internal/session"
)

const (
	openedNotice = "Connection opened."
	closedNotice = "Connection closed."
)

// LogSink receives human-readable log lines.
type LogSink interface {
	Append(entry model.LogEntry)
}

// Parser decodes one inbound frame.
type Parser interface {
	Parse(frame string) (model.ParsedEvent, error)
}

// Dashboard connects session events, the parser, the time series, the log
// and the renderer. Handle must be called from a single goroutine.
type Dashboard struct {
	parser   Parser
	store    *series.Store
	log      LogSink
	renderer render.Renderer
}

// New creates a Dashboard from its components.
func New(p Parser, store *series.Store, log LogSink, r render.Renderer) *Dashboard {
	return &Dashboard{
		parser:   p,
		store:    store,
		log:      log,
		renderer: r,
	}
}

// Handle applies one session event.
func (d *Dashboard) Handle(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventOpened:
		d.notice(openedNotice)
	case session.EventMessage:
		_ = d.HandleFrame(ctx, ev.Frame)
	case session.EventClosed:
		if ev.Err != nil {
			slog.Warn("connection ended with error", "error", ev.Err)
		}
		d.notice(closedNotice)
	}
}

// HandleFrame decodes one frame and applies it. A frame that fails to decode
// is reported and discarded; the store and chart are left untouched.
func (d *Dashboard) HandleFrame(ctx context.Context, frame string) error {
	ev, err := d.parser.Parse(frame)
	if err != nil {
		return d.discard(frame, err)
	}

	switch ev.Kind {
	case model.KindSnapshot:
		if err := d.store.ReplaceAll(ev.Timestamps, ev.Statuses); err != nil {
			return d.discard(frame, err)
		}
		slog.Debug("snapshot applied", "samples", len(ev.Timestamps))
	case model.KindIncremental:
		d.log.Append(model.LogEntry{Text: ev.LogText})
		if ev.Sample != nil {
			if err := d.store.Append(*ev.Sample); err != nil {
				return d.discard(frame, err)
			}
		}
	default:
		return d.discard(frame, fmt.Errorf("unknown event kind %d", ev.Kind))
	}

	d.render(ctx)
	return nil
}

// Unsupported reports that no streaming transport exists for scheme. Nothing
// else happens afterwards: no chart, no session.
func (d *Dashboard) Unsupported(scheme string) {
	d.notice(fmt.Sprintf("Your client does not support %s streaming connections.", scheme))
}

// Run applies events until the channel closes or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.Handle(ctx, ev)
		}
	}
}

// Series returns the current contents of the store.
func (d *Dashboard) Series() model.TimeSeries {
	return d.store.CurrentSeries()
}

// Close releases the renderer.
func (d *Dashboard) Close() error {
	return d.renderer.Close()
}

func (d *Dashboard) render(ctx context.Context) {
	if err := d.renderer.Render(ctx, d.store.CurrentSeries()); err != nil {
		slog.Warn("chart render failed", "error", err)
	}
}

func (d *Dashboard) discard(frame string, err error) error {
	slog.Warn("discarding frame", "frame", truncate(frame, 120), "error", err)
	d.notice("Discarded frame: " + err.Error())
	return fmt.Errorf("dashboard frame: %w", err)
}

func (d *Dashboard) notice(text string) {
	d.log.Append(model.LogEntry{Text: text, Notice: true})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Parser = (*protocol.Parser)(nil)
