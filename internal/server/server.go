// Package server streams connection status to dashboard clients over
// websockets.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crimson-sun/updash/internal/model"
	"github.com/crimson-sun/updash/internal/monitor"
	"github.com/crimson-sun/updash/internal/protocol"
)

const writeWait = 10 * time.Second

// History is the read side of the state change log.
type History interface {
	All() ([]int64, []model.Status, error)
	Latest() (model.Sample, bool, error)
}

// ChangeSink receives every change Run forwards, after it was broadcast.
type ChangeSink interface {
	Write(ctx context.Context, c monitor.Change) error
}

// Option configures a Server.
type Option func(*Server)

// WithKeepalive sets how often the latest state is re-pushed to idle
// clients. Default: 300s.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

// WithHandshake sets the token a client's first message must contain to
// receive the history snapshot. Default: "init".
func WithHandshake(token string) Option {
	return func(s *Server) {
		if token != "" {
			s.handshake = token
		}
	}
}

// WithClientBuffer sets the per-client queue length. Default: 16.
func WithClientBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.clientBuffer = n
		}
	}
}

// WithSink adds a destination for changes besides connected clients.
func WithSink(sink ChangeSink) Option {
	return func(s *Server) { s.sinks = append(s.sinks, sink) }
}

// Server serves /status and /healthz.
type Server struct {
	history      History
	keepalive    time.Duration
	handshake    string
	clientBuffer int
	upgrader     websocket.Upgrader
	sinks        []ChangeSink

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	send chan model.Sample
	quit chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.quit) })
}

// New creates a Server backed by h.
func New(h History, opts ...Option) *Server {
	s := &Server{
		history:      h,
		keepalive:    300 * time.Second,
		handshake:    "init",
		clientBuffer: 16,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run forwards monitor changes to every client until changes closes or ctx
// is cancelled, then disconnects all clients.
func (s *Server) Run(ctx context.Context, changes <-chan monitor.Change) error {
	defer s.closeClients()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			s.Broadcast(c.Sample())
			for _, sink := range s.sinks {
				if err := sink.Write(ctx, c); err != nil {
					slog.Warn("change sink failed", "error", err)
				}
			}
		}
	}
}

// Broadcast queues sample for every connected client. A client whose queue
// is full misses the sample.
func (s *Server) Broadcast(sample model.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- sample:
		default:
			slog.Warn("client queue full, dropping change", "at", sample.Timestamp)
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) register() (*client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	c := &client{
		send: make(chan model.Sample, s.clientBuffer),
		quit: make(chan struct{}),
	}
	s.clients[c] = struct{}{}
	return c, true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.stop()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		c.stop()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	c, ok := s.register()
	if !ok {
		closeWith(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.unregister(c)

	log := slog.With("remote", r.RemoteAddr)
	log.Info("client connected")

	_, first, err := conn.ReadMessage()
	if err != nil {
		log.Info("client left before handshake", "error", err)
		return
	}
	var seen snapshotMark
	if strings.Contains(string(first), s.handshake) {
		if seen, err = s.sendSnapshot(conn); err != nil {
			log.Warn("snapshot failed", "error", err)
			return
		}
	} else {
		log.Info("client skipped handshake", "message", string(first))
	}

	go s.readLoop(conn, c, log)
	s.writeLoop(conn, c, seen, log)
	log.Info("client disconnected")
}

// readLoop logs client messages and stops the client when the connection
// fails or closes.
func (s *Server) readLoop(conn *websocket.Conn, c *client, log *slog.Logger) {
	defer c.stop()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		log.Info("client message", "message", string(msg))
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, c *client, seen snapshotMark, log *slog.Logger) {
	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			closeWith(conn, websocket.CloseNormalClosure, "")
			return
		case sample := <-c.send:
			if seen.covers(sample.Timestamp) {
				continue
			}
			if err := write(conn, protocol.EncodeIncremental(sample.Timestamp, sample.Status == model.Up)); err != nil {
				log.Warn("push failed", "error", err)
				return
			}
		case <-ticker.C:
			latest, ok, err := s.history.Latest()
			if err != nil {
				log.Warn("keepalive lookup failed", "error", err)
				continue
			}
			if !ok {
				continue
			}
			if err := write(conn, protocol.EncodeIncremental(latest.Timestamp, latest.Status == model.Up)); err != nil {
				log.Warn("keepalive failed", "error", err)
				return
			}
		}
	}
}

// snapshotMark records the newest timestamp a client received in its
// snapshot. The client is registered before the snapshot is read, so a
// broadcast racing the read can be both in the snapshot and queued.
type snapshotMark struct {
	sent   bool
	newest int64
}

func (m snapshotMark) covers(ts int64) bool {
	return m.sent && ts <= m.newest
}

func (s *Server) sendSnapshot(conn *websocket.Conn) (snapshotMark, error) {
	timestamps, statuses, err := s.history.All()
	if err != nil {
		return snapshotMark{}, err
	}
	frame, err := protocol.EncodeSnapshot(timestamps, statuses)
	if err != nil {
		return snapshotMark{}, err
	}
	if err := write(conn, frame); err != nil {
		return snapshotMark{}, err
	}
	var mark snapshotMark
	for i, ts := range timestamps {
		if i == 0 || ts > mark.newest {
			mark.newest = ts
		}
		mark.sent = true
	}
	return mark, nil
}

func write(conn *websocket.Conn, frame string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
