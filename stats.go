package main

import (
	"math"
	"sync"
)

// DerivedStats are recomputed from an endpoint's ring buffer after every
// pass. They are a pure function of the buffer contents: the same buffer
// always yields the same stats. When the buffer holds no reachable entries,
// Available is false and the numeric fields are meaningless.
type DerivedStats struct {
	Available bool    `json:"available"`
	MeanMs    float64 `json:"mean_ms,omitempty"`
	StdDevMs  float64 `json:"stddev_ms,omitempty"`
	MinMs     float64 `json:"min_ms,omitempty"`

	// DeltaMs is the signed difference between the two most recent
	// reachable samples, skipping unreachable gaps.
	DeltaMs  float64 `json:"delta_ms,omitempty"`
	HasDelta bool    `json:"has_delta"`

	// Hop-count and OS guesses from the newest reachable TTL. Heuristic
	// lookups only, never authoritative.
	TTL       int    `json:"ttl,omitempty"`
	HopsGuess int    `json:"hops_guess,omitempty"`
	OSGuess   string `json:"os_guess,omitempty"`
	HasTTL    bool   `json:"has_ttl"`
}

// defaultTTLs are common initial TTL values, ascending. A reply TTL is
// matched against the nearest ceiling to guess hop count and origin OS.
var defaultTTLs = []struct {
	initial int
	os      string
}{
	{64, "Linux"},
	{128, "Windows"},
	{255, "macOS"},
}

// ttlGuess guesses hop count and OS from a reply TTL by nearest-ceiling
// match against common default TTLs. ok is false for TTLs outside (0, 255].
func ttlGuess(ttl int) (hops int, osName string, ok bool) {
	if ttl <= 0 || ttl > 255 {
		return 0, "", false
	}
	for _, d := range defaultTTLs {
		if ttl <= d.initial {
			return d.initial - ttl, d.os, true
		}
	}
	return 0, "", false
}

// ringSlot is one entry in an endpoint's history ring. A slot is empty
// before its first write and while pre-cleared at the start of a tick.
type ringSlot struct {
	filled bool
	res    ProbeResult
}

// endpointRing is the fixed-capacity circular history for one endpoint.
// pos is the current write index; it advances once per ingested pass
// regardless of probe outcome.
type endpointRing struct {
	slots []ringSlot
	pos   int
	stats DerivedStats
}

// StatsEngine owns one ring buffer per endpoint. Rings are mutated only by
// the coordinating goroutine (ClearCurrentSlots before a tick's fan-out,
// Ingest after its join); the lock exists for concurrent read-only
// snapshots taken by the HTTP renderer.
type StatsEngine struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*endpointRing
}

// NewStatsEngine creates rings of the given capacity for every endpoint.
func NewStatsEngine(endpoints []Endpoint, capacity int) *StatsEngine {
	se := &StatsEngine{
		capacity: capacity,
		rings:    make(map[string]*endpointRing, len(endpoints)),
	}
	for _, ep := range endpoints {
		se.rings[ep.Address] = &endpointRing{slots: make([]ringSlot, capacity)}
	}
	return se
}

// ClearCurrentSlots empties every endpoint's current write slot. The
// scheduler calls this before dispatching a tick's probes so that a reader
// observing mid-tick sees an empty slot rather than stale data from the
// previous lap of the ring.
func (se *StatsEngine) ClearCurrentSlots() {
	se.mu.Lock()
	defer se.mu.Unlock()

	for _, ring := range se.rings {
		ring.slots[ring.pos] = ringSlot{}
	}
}

// Ingest writes each endpoint's result into its ring at the current write
// index, advances the index, and recomputes derived stats from the buffer
// contents.
func (se *StatsEngine) Ingest(pass Pass) {
	se.mu.Lock()
	defer se.mu.Unlock()

	for addr, ring := range se.rings {
		res, ok := pass.Results[addr]
		ring.slots[ring.pos] = ringSlot{filled: ok, res: res}
		ring.pos = (ring.pos + 1) % se.capacity
		ring.stats = computeStats(ring.slots, ring.pos)
	}
}

// computeStats derives statistics from ring contents. pos is the next write
// index, i.e. the slot at pos-1 holds the most recent sample.
func computeStats(slots []ringSlot, pos int) DerivedStats {
	var stats DerivedStats
	c := len(slots)

	var sum, sqrSum, min float64
	n := 0
	for _, s := range slots {
		if !s.filled || !s.res.Reachable {
			continue
		}
		lat := s.res.LatencyMs
		sum += lat
		sqrSum += lat * lat
		if n == 0 || lat < min {
			min = lat
		}
		n++
	}
	if n == 0 {
		return stats
	}

	stats.Available = true
	stats.MeanMs = sum / float64(n)
	// population standard deviation; the max() guards float rounding
	stats.StdDevMs = math.Sqrt(math.Max(0, sqrSum/float64(n)-stats.MeanMs*stats.MeanMs))
	stats.MinMs = min

	// walk backwards from the newest sample for delta and TTL
	var recent []ProbeResult
	for k := 1; k <= c && len(recent) < 2; k++ {
		s := slots[((pos-k)%c+c)%c]
		if s.filled && s.res.Reachable {
			recent = append(recent, s.res)
		}
	}
	if len(recent) == 2 {
		stats.HasDelta = true
		stats.DeltaMs = recent[0].LatencyMs - recent[1].LatencyMs
	}
	if len(recent) > 0 {
		if hops, osName, ok := ttlGuess(recent[0].TTL); ok {
			stats.HasTTL = true
			stats.TTL = recent[0].TTL
			stats.HopsGuess = hops
			stats.OSGuess = osName
		}
	}

	return stats
}

// Stats returns the derived statistics for an endpoint address.
func (se *StatsEngine) Stats(addr string) (DerivedStats, bool) {
	se.mu.RLock()
	defer se.mu.RUnlock()

	ring, ok := se.rings[addr]
	if !ok {
		return DerivedStats{}, false
	}
	return ring.stats, true
}

// Latest returns the most recently ingested result for an endpoint, if any.
func (se *StatsEngine) Latest(addr string) (ProbeResult, bool) {
	se.mu.RLock()
	defer se.mu.RUnlock()

	ring, ok := se.rings[addr]
	if !ok {
		return ProbeResult{}, false
	}
	c := len(ring.slots)
	s := ring.slots[((ring.pos-1)%c+c)%c]
	if !s.filled {
		return ProbeResult{}, false
	}
	return s.res, true
}

// Window returns the buffered results for an endpoint ordered oldest to
// newest, skipping empty slots. The returned slice is a copy.
func (se *StatsEngine) Window(addr string) []ProbeResult {
	se.mu.RLock()
	defer se.mu.RUnlock()

	ring, ok := se.rings[addr]
	if !ok {
		return nil
	}
	c := len(ring.slots)
	var out []ProbeResult
	for k := c; k >= 1; k-- {
		s := ring.slots[((ring.pos-k)%c+c)%c]
		if s.filled {
			out = append(out, s.res)
		}
	}
	return out
}
