package updash

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/updash/internal/model"
	"github.com/crimson-sun/updash/internal/protocol"
	"github.com/crimson-sun/updash/internal/session"

	// Register streaming transports.
	_ "github.com/crimson-sun/updash/internal/session/websocket"
)

// ErrUnsupported is returned by Watch when no transport exists for the
// endpoint's scheme.
var ErrUnsupported = session.ErrTransportUnsupported

// Decoder decodes raw frames.
type Decoder struct {
	parser *protocol.Parser
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Decoder{parser: newParser(o)}
}

func newParser(o options) *protocol.Parser {
	popts := []protocol.Option{protocol.WithLayout(o.layout), protocol.WithLocation(o.location)}
	if o.seconds {
		popts = append(popts, protocol.WithUnit(protocol.Seconds))
	}
	return protocol.New(popts...)
}

// Decode decodes one frame.
func (d *Decoder) Decode(frame string) (Update, error) {
	ev, err := d.parser.Parse(frame)
	if err != nil {
		return Update{}, fmt.Errorf("updash: %w", err)
	}
	return updateFromEvent(ev), nil
}

// Classify reports whether label describes the connection going "up" or
// "down". It returns "" for labels that are neither.
func Classify(label string) (string, error) {
	st, err := protocol.Classify(label)
	if err != nil {
		return "", fmt.Errorf("updash: %w", err)
	}
	if st == model.Unclassified {
		return "", nil
	}
	return st.String(), nil
}

// Watch connects to endpoint and streams decoded updates until the
// connection ends or ctx is cancelled. Frames that fail to decode are
// logged and skipped.
func Watch(ctx context.Context, endpoint string, opts ...Option) (<-chan Update, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	parser := newParser(o)

	mgr := session.NewManager(session.WithHandshake(o.handshake))
	events, err := mgr.Open(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("updash: %w", err)
	}

	out := make(chan Update)
	go func() {
		defer close(out)
		defer mgr.Close()
		for ev := range events {
			if ev.Kind != session.EventMessage {
				continue
			}
			parsed, err := parser.Parse(ev.Frame)
			if err != nil {
				slog.Warn("updash: skipping frame", "error", err)
				continue
			}
			select {
			case out <- updateFromEvent(parsed):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func updateFromEvent(ev model.ParsedEvent) Update {
	if ev.Kind == model.KindSnapshot {
		up := make([]bool, len(ev.Statuses))
		for i, v := range ev.Statuses {
			up[i] = v == 1
		}
		ts := make([]int64, len(ev.Timestamps))
		copy(ts, ev.Timestamps)
		return Update{Snapshot: true, Timestamps: ts, Up: up}
	}

	u := Update{Line: ev.LogText}
	if ev.Sample != nil {
		u.Status = ev.Sample.Status.String()
		u.Timestamp = ev.Sample.Timestamp
	}
	return u
}
