package main

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// GeoLoc is an optional geographic coordinate pair attached to an endpoint.
// The monitoring core carries it through untouched; only external map
// renderers interpret it.
type GeoLoc struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String renders the coordinates in degrees/minutes/seconds, e.g.
// "48°51′29″N|2°17′40″E".
func (g GeoLoc) String() string {
	ns := "N"
	if g.Lat < 0 {
		ns = "S"
	}
	ew := "E"
	if g.Lon < 0 {
		ew = "W"
	}
	latD, latM, latS := dms(math.Abs(g.Lat))
	lonD, lonM, lonS := dms(math.Abs(g.Lon))
	return fmt.Sprintf("%d°%d′%d″%s|%d°%d′%d″%s", latD, latM, latS, ns, lonD, lonM, lonS, ew)
}

func dms(deg float64) (int, int, int) {
	d := int(math.Floor(deg))
	m := int(math.Floor(60 * (deg - float64(d))))
	s := int(math.Floor(3600 * (deg - float64(d) - float64(m)/60)))
	return d, m, s
}

// Endpoint is one monitored node. The set of endpoints is fixed at startup.
type Endpoint struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	SpeechName string  `json:"speech_name,omitempty"`
	Geo        *GeoLoc `json:"geoloc,omitempty"`
}

// speechLabel is what the voice announcer calls this endpoint.
func (e Endpoint) speechLabel() string {
	if e.SpeechName != "" {
		return e.SpeechName
	}
	return e.Name
}

// ProbeResult is the outcome of one reachability measurement for one
// endpoint. LatencyMs is meaningful only when Reachable; TTL is 0 when the
// reply carried no usable TTL.
type ProbeResult struct {
	Timestamp time.Time `json:"timestamp"`
	Reachable bool      `json:"reachable"`
	LatencyMs float64   `json:"latency_ms,omitempty"`
	TTL       int       `json:"ttl,omitempty"`
}

// Pass is the joined result of probing every endpoint once during a single
// scheduler tick. It is assembled in full before any consumer sees it and
// is never mutated afterwards.
type Pass struct {
	Seq       uint64                 `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	Results   map[string]ProbeResult `json:"results"`
}

// DisconnectedCount returns the number of unreachable endpoints in the pass.
func (p Pass) DisconnectedCount() int {
	n := 0
	for _, res := range p.Results {
		if !res.Reachable {
			n++
		}
	}
	return n
}

// Disconnected returns the addresses of unreachable endpoints, sorted for
// stable output.
func (p Pass) Disconnected() []string {
	var addrs []string
	for addr, res := range p.Results {
		if !res.Reachable {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)
	return addrs
}

// EndpointDown reports whether the given address was unreachable in this
// pass. An address absent from the pass counts as not down.
func (p Pass) EndpointDown(addr string) bool {
	res, ok := p.Results[addr]
	return ok && !res.Reachable
}

// AlarmPhase is the global alarm condition. There is exactly one phase for
// the whole system, not one per endpoint.
type AlarmPhase int

const (
	// PhaseQuiet means every endpoint answered the latest pass.
	PhaseQuiet AlarmPhase = iota
	// PhaseArmed means at least one endpoint is down but the grace delay
	// has not yet expired, so nothing has been announced.
	PhaseArmed
	// PhaseAlarming means the alarm has been announced and repeats are
	// subject to interval suppression.
	PhaseAlarming
)

func (p AlarmPhase) String() string {
	switch p {
	case PhaseQuiet:
		return "QUIET"
	case PhaseArmed:
		return "ARMED"
	case PhaseAlarming:
		return "ALARMING"
	default:
		return fmt.Sprintf("AlarmPhase(%d)", int(p))
	}
}

// AnnouncementKind classifies alarm machine emissions so that collaborators
// can apply their own delivery policy per kind.
type AnnouncementKind int

const (
	AnnounceAlarm AnnouncementKind = iota
	AnnounceRepeat
	AnnounceAllClear
)

func (k AnnouncementKind) String() string {
	switch k {
	case AnnounceAlarm:
		return "alarm"
	case AnnounceRepeat:
		return "repeat"
	case AnnounceAllClear:
		return "all_clear"
	default:
		return fmt.Sprintf("AnnouncementKind(%d)", int(k))
	}
}

// HTTPRateLimiter tracks HTTP requests per client IP over a sliding window.
type HTTPRateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}
