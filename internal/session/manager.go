package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

var (
	ErrTransportUnsupported = errors.New("session: transport unsupported")
	ErrNotOpen              = errors.New("session: not open")
	ErrEmptyMessage         = errors.New("session: empty message")
	ErrAlreadyStarted       = errors.New("session: already started")
)

// DefaultHandshake is sent once the session opens to request the bulk snapshot.
const DefaultHandshake = "init"

const defaultEventBuffer = 64

// State is the lifecycle of a Manager. It only moves forward.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind identifies a session lifecycle event.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventMessage
	EventClosed
)

// Event is delivered on the channel returned by Open, in transport order.
// Exactly one EventClosed ends every stream, after which the channel closes.
type Event struct {
	Kind  EventKind
	Frame string // EventMessage only
	Err   error  // EventClosed only; nil on clean closure
}

// Option configures a Manager.
type Option func(*Manager)

// WithHandshake overrides the request sent when the session opens.
func WithHandshake(text string) Option {
	return func(m *Manager) { m.handshake = text }
}

// WithEventBuffer sets the event channel capacity. Default: 64.
func WithEventBuffer(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.bufSize = n
		}
	}
}

// WithDialer bypasses the scheme registry and always uses d.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// Manager owns a single best-effort streaming session: no retries, no
// reconnection. Transport errors and normal closure both end in EventClosed.
type Manager struct {
	handshake string
	bufSize   int
	dialer    Dialer

	mu    sync.Mutex
	state State
	conn  Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewManager creates an idle Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		handshake: DefaultHandshake,
		bufSize:   defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open starts connecting to endpoint and returns the event stream.
// It fails without side effects when no transport is registered for the
// endpoint's scheme. Cancelling ctx closes the session.
func (m *Manager) Open(ctx context.Context, endpoint string) (<-chan Event, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("session open: %w", err)
	}

	dialer := m.dialer
	if dialer == nil {
		ctor, err := Lookup(u.Scheme)
		if err != nil {
			return nil, err
		}
		dialer = ctor()
	}

	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	m.state = Connecting
	m.mu.Unlock()

	events := make(chan Event, m.bufSize)
	go m.run(ctx, dialer, endpoint, events)
	return events, nil
}

func (m *Manager) run(ctx context.Context, dialer Dialer, endpoint string, events chan<- Event) {
	defer close(events)

	conn, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		m.setState(Closed)
		slog.Info("session dial failed", "endpoint", endpoint, "error", err)
		emit(ctx, events, Event{Kind: EventClosed, Err: err})
		return
	}

	m.mu.Lock()
	if m.state == Closed {
		// Close raced with the dial.
		m.mu.Unlock()
		conn.Close()
		emit(ctx, events, Event{Kind: EventClosed})
		return
	}
	m.conn = conn
	m.state = Open
	m.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { m.Close() })
	defer stop()

	slog.Info("session opened", "endpoint", endpoint)
	emit(ctx, events, Event{Kind: EventOpened})

	if m.handshake != "" {
		if err := m.write(m.handshake); err != nil {
			slog.Warn("session handshake failed", "error", err)
		}
	}

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			closedLocally := m.State() == Closed
			m.Close()
			var closeErr error
			if !closedLocally && ctx.Err() == nil && !isNormalClosure(err) {
				closeErr = err
			}
			slog.Info("session closed", "endpoint", endpoint, "error", closeErr)
			emit(ctx, events, Event{Kind: EventClosed, Err: closeErr})
			return
		}
		if !emit(ctx, events, Event{Kind: EventMessage, Frame: frame}) {
			m.Close()
			emit(ctx, events, Event{Kind: EventClosed})
			return
		}
	}
}

// emit delivers ev unless ctx is cancelled first.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		if ev.Kind == EventClosed {
			// The terminal event is never dropped while there is room for it.
			select {
			case events <- ev:
				return true
			default:
			}
		}
		return false
	}
}

// Send transmits user text. It is rejected when the session is not open or
// the text is blank; nothing is queued for later.
func (m *Manager) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	m.mu.Lock()
	open := m.state == Open
	m.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	return m.write(text)
}

func (m *Manager) write(text string) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(text); err != nil {
		return fmt.Errorf("session send: %w", err)
	}
	return nil
}

// Close ends the session. It is safe to call more than once and from any goroutine.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		conn := m.conn
		m.state = Closed
		m.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// NormalClosure can be implemented by transport errors that represent an
// orderly shutdown rather than a failure.
type NormalClosure interface {
	NormalClosure() bool
}

func isNormalClosure(err error) bool {
	var nc NormalClosure
	return errors.As(err, &nc) && nc.NormalClosure()
}
