package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"
)

// Prober performs one reachability/latency measurement for one endpoint
// within a bounded time. Implementations return an error only for probe
// mechanics failures (spawn error, socket error); an unreachable endpoint
// is a successful measurement with Reachable=false. Either way the
// scheduler degrades the endpoint to unreachable and carries on.
type Prober interface {
	Probe(ctx context.Context, ep Endpoint) (ProbeResult, error)
}

// ICMPProber measures with unprivileged ICMP echo via go-ping.
type ICMPProber struct {
	timeout  time.Duration
	attempts int
}

// NewICMPProber returns a prober sending attempts echo requests per probe,
// bounded overall by timeout.
func NewICMPProber(timeout time.Duration, attempts int) *ICMPProber {
	if attempts < 1 {
		attempts = 1
	}
	return &ICMPProber{timeout: timeout, attempts: attempts}
}

// Probe pings the endpoint once. The TTL of the last reply is captured for
// the hop/OS heuristics downstream.
func (pr *ICMPProber) Probe(ctx context.Context, ep Endpoint) (ProbeResult, error) {
	pinger, err := ping.NewPinger(ep.Address)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("creating pinger for %s: %v", ep.Address, err)
	}

	pinger.Count = pr.attempts
	pinger.Timeout = pr.timeout
	pinger.SetPrivileged(false)

	ttl := 0
	pinger.OnRecv = func(pkt *ping.Packet) {
		ttl = pkt.Ttl
	}

	// go-ping has no context variant; bridge cancellation to Stop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	err = pinger.Run()
	now := time.Now()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("pinging %s: %v", ep.Address, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return ProbeResult{Timestamp: now, Reachable: false}, nil
	}

	return ProbeResult{
		Timestamp: now,
		Reachable: true,
		LatencyMs: float64(stats.AvgRtt) / float64(time.Millisecond),
		TTL:       ttl,
	}, nil
}
