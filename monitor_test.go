package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber returns canned results per endpoint address. Addresses
// listed in slow block until the probe context expires; addresses in fail
// return an error.
type scriptedProber struct {
	latencies map[string]float64
	slow      map[string]bool
	fail      map[string]bool
}

func (sp *scriptedProber) Probe(ctx context.Context, ep Endpoint) (ProbeResult, error) {
	if sp.fail[ep.Address] {
		return ProbeResult{}, errors.New("socket error")
	}
	if sp.slow[ep.Address] {
		<-ctx.Done()
		return ProbeResult{Timestamp: time.Now(), Reachable: false}, nil
	}
	lat, ok := sp.latencies[ep.Address]
	if !ok {
		return ProbeResult{Timestamp: time.Now(), Reachable: false}, nil
	}
	return ProbeResult{Timestamp: time.Now(), Reachable: true, LatencyMs: lat, TTL: 57}, nil
}

func testMonitor(t *testing.T, prober Prober, endpoints []Endpoint) *Monitor {
	t.Helper()

	config := Config{
		TickIntervalMs:            5000,
		ProbeTimeoutMs:            50,
		MaxConcurrentProbes:       4,
		RingCapacity:              9,
		AlarmDelaySeconds:         0,
		AlarmIntervalSeconds:      30,
		AlarmIntervalFloorSeconds: 1,
		Endpoints:                 endpoints,
	}

	m, err := NewMonitor(config)
	require.NoError(t, err)
	m.prober = prober
	return m
}

func TestRunPassJoinsAllEndpoints(t *testing.T) {
	t.Parallel()

	endpoints := []Endpoint{
		{Name: "gw", Address: "10.0.0.1"},
		{Name: "dns", Address: "10.0.0.2"},
		{Name: "nas", Address: "10.0.0.3"},
	}
	prober := &scriptedProber{latencies: map[string]float64{
		"10.0.0.1": 5,
		"10.0.0.2": 12,
	}}
	m := testMonitor(t, prober, endpoints)

	pass := m.runPass(context.Background())

	assert.Equal(t, uint64(1), pass.Seq)
	require.Len(t, pass.Results, 3)
	assert.True(t, pass.Results["10.0.0.1"].Reachable)
	assert.True(t, pass.Results["10.0.0.2"].Reachable)
	assert.False(t, pass.Results["10.0.0.3"].Reachable)
	assert.Equal(t, 1, pass.DisconnectedCount())
	assert.Equal(t, []string{"10.0.0.3"}, pass.Disconnected())
}

func TestRunPassFeedsCollaboratorsInOrder(t *testing.T) {
	t.Parallel()

	endpoints := []Endpoint{{Name: "gw", Address: "10.0.0.1"}}
	prober := &scriptedProber{latencies: map[string]float64{"10.0.0.1": 8}}
	m := testMonitor(t, prober, endpoints)

	m.runPass(context.Background())
	m.runPass(context.Background())

	assert.Equal(t, 2, m.history.Len())
	latest, ok := m.history.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Seq)

	stats, ok := m.stats.Stats("10.0.0.1")
	require.True(t, ok)
	assert.True(t, stats.Available)
	assert.InDelta(t, 8.0, stats.MeanMs, 1e-9)

	assert.Equal(t, PhaseQuiet, m.alarm.Snapshot().Phase)
}

func TestRunPassDegradesSlowProbe(t *testing.T) {
	t.Parallel()

	endpoints := []Endpoint{
		{Name: "gw", Address: "10.0.0.1"},
		{Name: "far", Address: "10.0.0.9"},
	}
	prober := &scriptedProber{
		latencies: map[string]float64{"10.0.0.1": 5},
		slow:      map[string]bool{"10.0.0.9": true},
	}
	m := testMonitor(t, prober, endpoints)

	start := time.Now()
	pass := m.runPass(context.Background())

	// the slow probe is cut off at the probe timeout, not the tick interval
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, pass.Results["10.0.0.9"].Reachable)
	assert.True(t, pass.Results["10.0.0.1"].Reachable)
}

func TestRunPassProbeErrorCountsAsDisconnect(t *testing.T) {
	t.Parallel()

	endpoints := []Endpoint{{Name: "gw", Address: "10.0.0.1"}}
	prober := &scriptedProber{fail: map[string]bool{"10.0.0.1": true}}
	m := testMonitor(t, prober, endpoints)

	pass := m.runPass(context.Background())

	require.Len(t, pass.Results, 1)
	assert.False(t, pass.Results["10.0.0.1"].Reachable)
	assert.Equal(t, 1, pass.DisconnectedCount())
	assert.Equal(t, PhaseAlarming, m.alarm.Snapshot().Phase)
}

func TestRunPassAlarmLifecycle(t *testing.T) {
	t.Parallel()

	endpoints := []Endpoint{{Name: "gw", Address: "10.0.0.1"}}
	prober := &scriptedProber{}
	m := testMonitor(t, prober, endpoints)

	m.runPass(context.Background())
	assert.Equal(t, PhaseAlarming, m.alarm.Snapshot().Phase)

	prober.latencies = map[string]float64{"10.0.0.1": 3}
	m.runPass(context.Background())
	assert.Equal(t, PhaseQuiet, m.alarm.Snapshot().Phase)
}

func TestNewMonitorRejectsUnknownEncoding(t *testing.T) {
	t.Parallel()

	_, err := NewMonitor(Config{
		ProbeMethod:         "system",
		PingEncoding:        "no-such-charset",
		MaxConcurrentProbes: 1,
		RingCapacity:        1,
		Endpoints:           []Endpoint{{Name: "gw", Address: "10.0.0.1"}},
	})
	assert.Error(t, err)
}
