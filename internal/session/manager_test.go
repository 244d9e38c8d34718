package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// --- fakes ---

type fakeConn struct {
	incoming chan string
	done     chan struct{}
	readErr  error

	mu        sync.Mutex
	writes    []string
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan string, 16),
		done:     make(chan struct{}),
		readErr:  io.EOF,
	}
}

func (c *fakeConn) ReadMessage() (string, error) {
	select {
	case f := <-c.incoming:
		return f, nil
	case <-c.done:
		return "", c.readErr
	}
}

func (c *fakeConn) WriteMessage(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, text)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]string, len(c.writes))
	copy(cp, c.writes)
	return cp
}

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

// --- tests ---

func TestOpenSendsHandshakeAndForwardsFrames(t *testing.T) {
	fc := newFakeConn()
	m := NewManager(WithDialer(&fakeDialer{conn: fc}))

	events, err := m.Open(context.Background(), "ws://example/status")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if ev := next(t, events); ev.Kind != EventOpened {
		t.Fatalf("expected EventOpened first, got %+v", ev)
	}

	fc.incoming <- `[[1],["true"]]`
	fc.incoming <- "link-up 2"

	ev := next(t, events)
	if ev.Kind != EventMessage || ev.Frame != `[[1],["true"]]` {
		t.Fatalf("unexpected event %+v", ev)
	}
	ev = next(t, events)
	if ev.Kind != EventMessage || ev.Frame != "link-up 2" {
		t.Fatalf("unexpected event %+v", ev)
	}

	if w := fc.Writes(); len(w) != 1 || w[0] != "init" {
		t.Fatalf("expected single init handshake, got %v", w)
	}
	if m.State() != Open {
		t.Fatalf("expected Open, got %v", m.State())
	}

	fc.Close()
	ev = next(t, events)
	if ev.Kind != EventClosed {
		t.Fatalf("expected EventClosed, got %+v", ev)
	}
	waitClosed(t, events)
	if m.State() != Closed {
		t.Fatalf("expected Closed, got %v", m.State())
	}
}

func TestOpenUnsupportedScheme(t *testing.T) {
	m := NewManager()
	_, err := m.Open(context.Background(), "gopher://example/status")
	if !errors.Is(err, ErrTransportUnsupported) {
		t.Fatalf("expected ErrTransportUnsupported, got %v", err)
	}
	if m.State() != Idle {
		t.Fatalf("unsupported transport must leave the manager idle, got %v", m.State())
	}
}

func TestOpenTwice(t *testing.T) {
	fc := newFakeConn()
	m := NewManager(WithDialer(&fakeDialer{conn: fc}))
	if _, err := m.Open(context.Background(), "ws://x"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Open(context.Background(), "ws://x"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	m.Close()
}

func TestDialFailureSurfacesAsClosed(t *testing.T) {
	dialErr := errors.New("connection refused")
	m := NewManager(WithDialer(&fakeDialer{err: dialErr}))

	events, err := m.Open(context.Background(), "ws://x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ev := next(t, events)
	if ev.Kind != EventClosed {
		t.Fatalf("expected EventClosed without EventOpened, got %+v", ev)
	}
	if !errors.Is(ev.Err, dialErr) {
		t.Fatalf("expected dial error, got %v", ev.Err)
	}
	waitClosed(t, events)
}

func TestTransportErrorSurfacesAsClosed(t *testing.T) {
	fc := newFakeConn()
	fc.readErr = errors.New("reset by peer")
	m := NewManager(WithDialer(&fakeDialer{conn: fc}))

	events, _ := m.Open(context.Background(), "ws://x")
	next(t, events) // opened

	fc.Close()
	ev := next(t, events)
	if ev.Kind != EventClosed || ev.Err == nil {
		t.Fatalf("expected EventClosed carrying the transport error, got %+v", ev)
	}
}

func TestSendRules(t *testing.T) {
	fc := newFakeConn()
	m := NewManager(WithDialer(&fakeDialer{conn: fc}))

	if err := m.Send("hello"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen before open, got %v", err)
	}

	events, _ := m.Open(context.Background(), "ws://x")
	next(t, events)

	if err := m.Send("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := m.Send(""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := m.Send("ping"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	w := fc.Writes()
	if len(w) != 2 || w[1] != "ping" {
		t.Fatalf("expected [init ping], got %v", w)
	}

	m.Close()
	if err := m.Send("late"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen after close, got %v", err)
	}
}

func TestCustomHandshake(t *testing.T) {
	fc := newFakeConn()
	m := NewManager(WithDialer(&fakeDialer{conn: fc}), WithHandshake("hello"))
	events, _ := m.Open(context.Background(), "ws://x")
	next(t, events)

	// The handshake is written right after EventOpened is queued.
	deadline := time.Now().Add(time.Second)
	for len(fc.Writes()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w := fc.Writes(); len(w) != 1 || w[0] != "hello" {
		t.Fatalf("expected custom handshake, got %v", w)
	}
	m.Close()
}

func TestContextCancelCloses(t *testing.T) {
	fc := newFakeConn()
	m := NewManager(WithDialer(&fakeDialer{conn: fc}))
	ctx, cancel := context.WithCancel(context.Background())

	events, _ := m.Open(ctx, "ws://x")
	next(t, events)
	cancel()

	for ev := range events {
		if ev.Kind == EventClosed && ev.Err != nil {
			t.Fatalf("cancellation is a clean closure, got %v", ev.Err)
		}
	}
	if m.State() != Closed {
		t.Fatalf("expected Closed, got %v", m.State())
	}
}

func TestLocalCloseIsClean(t *testing.T) {
	fc := newFakeConn()
	fc.readErr = errors.New("use of closed network connection")
	m := NewManager(WithDialer(&fakeDialer{conn: fc}))

	events, _ := m.Open(context.Background(), "ws://x")
	next(t, events)
	m.Close()

	ev := next(t, events)
	if ev.Kind != EventClosed || ev.Err != nil {
		t.Fatalf("expected clean EventClosed, got %+v", ev)
	}
}

func TestRegistry(t *testing.T) {
	Register("fake", func() Dialer { return &fakeDialer{} })
	if _, err := Lookup("fake"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	found := false
	for _, s := range Schemes() {
		if s == "fake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fake in %v", Schemes())
	}
}
