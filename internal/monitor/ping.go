package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	ping "github.com/sparrc/go-ping"
)

// PingProber sends one ICMP echo per probe.
type PingProber struct {
	Timeout    time.Duration
	Privileged bool // raw sockets instead of unprivileged UDP pings
}

// Probe returns true if target replied within the timeout.
func (p PingProber) Probe(ctx context.Context, target string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	pinger, err := ping.NewPinger(target)
	if err != nil {
		return false, fmt.Errorf("monitor: pinger for %s: %w", target, err)
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	if pinger.Timeout <= 0 {
		pinger.Timeout = time.Second
	}
	pinger.SetPrivileged(p.Privileged)

	var up atomic.Bool
	pinger.OnRecv = func(*ping.Packet) {
		up.Store(true)
	}

	// Run is bounded by Timeout.
	pinger.Run()
	return up.Load(), nil
}
