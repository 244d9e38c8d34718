package dashboard

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/updash/internal/model"
	"github.com/crimson-sun/updash/internal/protocol"
	"github.com/crimson-sun/updash/internal/series"
	"github.com/crimson-sun/updash/internal/session"
)

// --- mocks ---

type mockLog struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (m *mockLog) Append(e model.LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *mockLog) Entries() []model.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.LogEntry, len(m.entries))
	copy(cp, m.entries)
	return cp
}

type mockRenderer struct {
	mu      sync.Mutex
	renders []model.TimeSeries
	err     error
	closed  bool
}

func (m *mockRenderer) Render(_ context.Context, ts model.TimeSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ts.Timestamps) != len(ts.Statuses) {
		panic("renderer received a mismatched series")
	}
	m.renders = append(m.renders, ts)
	return m.err
}

func (m *mockRenderer) Close() error {
	m.closed = true
	return nil
}

func (m *mockRenderer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.renders)
}

func (m *mockRenderer) Last() model.TimeSeries {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders[len(m.renders)-1]
}

func newTestDashboard() (*Dashboard, *series.Store, *mockLog, *mockRenderer) {
	store := series.New()
	log := &mockLog{}
	r := &mockRenderer{}
	p := protocol.New(protocol.WithLocation(time.UTC))
	return New(p, store, log, r), store, log, r
}

// --- scenarios ---

func TestSnapshotFrame(t *testing.T) {
	d, store, log, r := newTestDashboard()

	if err := d.HandleFrame(context.Background(), `[[100,200],["true","false"]]`); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	got := store.CurrentSeries()
	if !reflect.DeepEqual(got.Timestamps, []int64{100, 200}) || !reflect.DeepEqual(got.Statuses, []int{1, 0}) {
		t.Fatalf("unexpected series %+v", got)
	}
	if n := len(log.Entries()); n != 0 {
		t.Fatalf("snapshot must be silent, got %d log entries", n)
	}
	if r.Count() != 1 {
		t.Fatalf("expected renderer invoked once, got %d", r.Count())
	}
}

func TestIncrementalDownFrame(t *testing.T) {
	d, store, log, r := newTestDashboard()

	if err := d.HandleFrame(context.Background(), "server-down 300"); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	got := store.CurrentSeries()
	if !reflect.DeepEqual(got.Timestamps, []int64{300}) || !reflect.DeepEqual(got.Statuses, []int{0}) {
		t.Fatalf("expected one (300, 0) sample, got %+v", got)
	}

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	wantTime := time.UnixMilli(300).UTC().Format(protocol.DefaultTimeLayout)
	if !strings.Contains(entries[0].Text, wantTime) || !strings.Contains(entries[0].Text, "down") {
		t.Fatalf("unexpected log entry %q", entries[0].Text)
	}
	if entries[0].Notice {
		t.Fatal("event lines are not notices")
	}
	if r.Count() != 1 || r.Last().Len() != 1 {
		t.Fatalf("expected one render of the new series")
	}
}

func TestIncrementalUnclassifiedFrame(t *testing.T) {
	d, store, log, r := newTestDashboard()
	_ = d.HandleFrame(context.Background(), `[[100,200],["true","false"]]`)

	if err := d.HandleFrame(context.Background(), "heartbeat 400"); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	if store.Len() != 2 {
		t.Fatalf("heartbeat must not append, len=%d", store.Len())
	}
	if n := len(log.Entries()); n != 1 {
		t.Fatalf("expected exactly one log entry, got %d", n)
	}
	if r.Count() != 2 || r.Last().Len() != 2 {
		t.Fatalf("expected renderer invoked with unchanged length, count=%d", r.Count())
	}
}

func TestIncrementalUpAppendsOne(t *testing.T) {
	d, store, _, _ := newTestDashboard()
	for i, frame := range []string{"link-up 1", "link-up 2", "link-up 3"} {
		if err := d.HandleFrame(context.Background(), frame); err != nil {
			t.Fatal(err)
		}
		if store.Len() != i+1 {
			t.Fatalf("expected exactly one sample per frame, len=%d after %d frames", store.Len(), i+1)
		}
	}
	if got := store.CurrentSeries().Statuses; !reflect.DeepEqual(got, []int{1, 1, 1}) {
		t.Fatalf("unexpected statuses %v", got)
	}
}

func TestMalformedFramesAreDiscarded(t *testing.T) {
	frames := []struct {
		frame string
		want  error
	}{
		{`[[100,200,300],["true","false"]]`, protocol.ErrLengthMismatch},
		{`[[100],["yes"]]`, protocol.ErrUnrecognizedBoolean},
		{"up-and-down 500", protocol.ErrAmbiguousLabel},
		{"nonsense", protocol.ErrMalformedFrame},
	}

	for _, tt := range frames {
		d, store, log, r := newTestDashboard()
		_ = d.HandleFrame(context.Background(), `[[1],["true"]]`)
		before := store.CurrentSeries()

		err := d.HandleFrame(context.Background(), tt.frame)
		if !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.frame, tt.want, err)
			continue
		}
		if !reflect.DeepEqual(store.CurrentSeries(), before) {
			t.Errorf("%q: store changed on a discarded frame", tt.frame)
		}
		if r.Count() != 1 {
			t.Errorf("%q: renderer must not run for a discarded frame", tt.frame)
		}
		entries := log.Entries()
		if len(entries) != 1 || !entries[0].Notice || !strings.HasPrefix(entries[0].Text, "Discarded frame") {
			t.Errorf("%q: expected one discard notice, got %+v", tt.frame, entries)
		}

		// Processing resumes with the next frame.
		if err := d.HandleFrame(context.Background(), "link-down 9"); err != nil {
			t.Errorf("%q: next frame failed: %v", tt.frame, err)
		}
		if store.Len() != 2 {
			t.Errorf("%q: expected processing to resume", tt.frame)
		}
	}
}

func TestNullSnapshotKeepsSeries(t *testing.T) {
	for _, frame := range []string{`[null,null]`, `[[],null]`, `[null,[]]`} {
		d, store, _, r := newTestDashboard()
		if err := d.HandleFrame(context.Background(), `[[100,200],["true","false"]]`); err != nil {
			t.Fatal(err)
		}

		if err := d.HandleFrame(context.Background(), frame); !errors.Is(err, protocol.ErrMalformedFrame) {
			t.Errorf("%s: expected ErrMalformedFrame, got %v", frame, err)
		}
		if store.Len() != 2 {
			t.Errorf("%s: store wiped, len=%d", frame, store.Len())
		}
		if r.Count() != 1 {
			t.Errorf("%s: renderer ran for a rejected snapshot", frame)
		}
	}
}

func TestRendererErrorIsNotFatal(t *testing.T) {
	d, store, _, r := newTestDashboard()
	r.err = errors.New("disk full")

	if err := d.HandleFrame(context.Background(), "link-up 1"); err != nil {
		t.Fatalf("render failures must not fail the frame: %v", err)
	}
	if store.Len() != 1 {
		t.Fatal("sample should still be stored")
	}
}

func TestLifecycleNotices(t *testing.T) {
	d, _, log, _ := newTestDashboard()
	ctx := context.Background()

	d.Handle(ctx, session.Event{Kind: session.EventOpened})
	d.Handle(ctx, session.Event{Kind: session.EventMessage, Frame: "heartbeat 1"})
	d.Handle(ctx, session.Event{Kind: session.EventClosed, Err: errors.New("reset")})

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "Connection opened." || !entries[0].Notice {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[2].Text != "Connection closed." || !entries[2].Notice {
		t.Fatalf("unexpected last entry %+v", entries[2])
	}
}

func TestUnsupported(t *testing.T) {
	d, store, log, r := newTestDashboard()
	d.Unsupported("ws")

	entries := log.Entries()
	if len(entries) != 1 || !strings.Contains(entries[0].Text, "does not support ws") {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if r.Count() != 0 || store.Len() != 0 {
		t.Fatal("degraded mode must not render or store anything")
	}
}

func TestRunProcessesInOrder(t *testing.T) {
	d, store, log, r := newTestDashboard()

	events := make(chan session.Event, 8)
	events <- session.Event{Kind: session.EventOpened}
	events <- session.Event{Kind: session.EventMessage, Frame: `[[100,200],["true","false"]]`}
	events <- session.Event{Kind: session.EventMessage, Frame: "server-down 300"}
	events <- session.Event{Kind: session.EventMessage, Frame: "heartbeat 400"}
	events <- session.Event{Kind: session.EventClosed}
	close(events)

	if err := d.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := store.CurrentSeries()
	if !reflect.DeepEqual(got.Timestamps, []int64{100, 200, 300}) || !reflect.DeepEqual(got.Statuses, []int{1, 0, 0}) {
		t.Fatalf("unexpected series %+v", got)
	}
	if n := len(log.Entries()); n != 4 {
		t.Fatalf("expected 4 log entries (opened, down, heartbeat, closed), got %d", n)
	}
	if r.Count() != 3 {
		t.Fatalf("expected 3 renders, got %d", r.Count())
	}
}

func TestRunContextCancel(t *testing.T) {
	d, _, _, _ := newTestDashboard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Run(ctx, make(chan session.Event)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCloseClosesRenderer(t *testing.T) {
	d, _, _, r := newTestDashboard()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !r.closed {
		t.Fatal("renderer not closed")
	}
}
