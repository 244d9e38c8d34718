package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Conn is one live, ordered, bidirectional text stream.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives or the stream ends.
	ReadMessage() (string, error)
	// WriteMessage sends one text frame without waiting for any acknowledgement.
	WriteMessage(text string) error
	Close() error
}

// Dialer opens streaming connections for one URL scheme.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Constructor creates a Dialer.
type Constructor func() Dialer

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a transport constructor for the given URL scheme.
func Register(scheme string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = ctor
}

// Lookup returns the transport constructor for a URL scheme.
func Lookup(scheme string) (Constructor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTransportUnsupported, scheme)
	}
	return ctor, nil
}

// Schemes returns the registered URL schemes in sorted order.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
