package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crimson-sun/updash/internal/session"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeGracePeriod        = time.Second
)

func init() {
	session.Register("ws", func() session.Dialer { return New() })
	session.Register("wss", func() session.Dialer { return New() })
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithHeader adds request headers sent with the opening handshake.
func WithHeader(h http.Header) Option {
	return func(d *Dialer) { d.header = h }
}

// Dialer opens gorilla/websocket connections.
type Dialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// New creates a Dialer with 1KB read/write buffers.
func New(opts ...Option) *Dialer {
	d := &Dialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial performs the websocket handshake against endpoint.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (session.Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, endpoint, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (HTTP %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", endpoint, err)
	}
	return &conn{ws: ws}, nil
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// closedError marks orderly close frames so the session reports a clean closure.
type closedError struct {
	err *websocket.CloseError
}

func (e *closedError) Error() string { return e.err.Error() }
func (e *closedError) Unwrap() error { return e.err }
func (e *closedError) NormalClosure() bool { return true }

func (c *conn) ReadMessage() (string, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
				return "", &closedError{err: ce}
			}
			return "", err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return string(data), nil
		}
	}
}

func (c *conn) WriteMessage(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close sends a best-effort close frame and tears down the connection.
func (c *conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod),
	)
	c.writeMu.Unlock()
	return c.ws.Close()
}
