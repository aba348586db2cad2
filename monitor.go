package main

import (
	"context"
	"log"
	"sync"
	"time"
)

// Monitor is the coordinating context. It drives the tick loop, fans one
// probe goroutine out per endpoint, joins the results into an immutable
// Pass, and only then lets the stats engine, history log and alarm machine
// see it. All core state is mutated on the coordinator goroutine after the
// join; probe goroutines return values and touch nothing shared.
type Monitor struct {
	config    Config
	prober    Prober
	stats     *StatsEngine
	history   *HistoryLog
	alarm     *AlarmStateMachine
	semaphore chan struct{}
	passSeq   uint64
}

// NewMonitor wires a Monitor from validated configuration.
func NewMonitor(config Config) (*Monitor, error) {
	var prober Prober
	var err error
	switch config.ProbeMethod {
	case "system":
		prober, err = NewSystemProber(config.probeTimeout(), config.PingEncoding)
		if err != nil {
			return nil, err
		}
	default:
		prober = NewICMPProber(config.probeTimeout(), config.ProbeAttempts)
	}

	speech := make(map[string]string, len(config.Endpoints))
	for _, ep := range config.Endpoints {
		speech[ep.Address] = ep.speechLabel()
	}

	announcers := []Announcer{LogAnnouncer{}}
	if config.SpeechEnabled {
		announcers = append(announcers, NewSpeechAnnouncer(config.SpeechCommand))
	}
	if config.Email.Enabled {
		announcers = append(announcers, NewEmailAnnouncer(config.Email))
	}

	alarm := NewAlarmStateMachine(AlarmConfig{
		Delay:         config.alarmDelay(),
		Interval:      config.alarmInterval(),
		IntervalFloor: config.alarmIntervalFloor(),
		HushInterval:  config.hushInterval(),
	}, speech, LogAudioController{}, announcers...)

	return &Monitor{
		config:    config,
		prober:    prober,
		stats:     NewStatsEngine(config.Endpoints, config.RingCapacity),
		history:   NewHistoryLog(),
		alarm:     alarm,
		semaphore: make(chan struct{}, config.MaxConcurrentProbes),
	}, nil
}

// Start runs the tick loop until ctx is cancelled. The loop sleeps between
// ticks; it never spins.
func (m *Monitor) Start(ctx context.Context) {
	m.logStartupInfo()

	if m.config.HTTPEnabled {
		m.startHTTPServer()
	}

	ticker := time.NewTicker(m.config.tickInterval())
	defer ticker.Stop()

	m.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("👋 Monitor stopping")
			return
		case <-ticker.C:
			m.runPass(ctx)
		}
	}
}

// runPass executes one full tick: pre-clear write slots, fan out, join,
// publish. Exactly one ProbeResult per endpoint is produced; a failed or
// timed-out probe degrades to unreachable and never aborts the pass.
func (m *Monitor) runPass(ctx context.Context) Pass {
	// a renderer reading mid-tick must see an empty slot, not last lap's data
	m.stats.ClearCurrentSlots()

	endpoints := m.config.Endpoints
	results := make([]ProbeResult, len(endpoints))

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("🆘 Probe for %s panicked: %v", formatEndpointInfo(ep), r)
					results[i] = ProbeResult{Timestamp: time.Now(), Reachable: false}
				}
			}()

			m.semaphore <- struct{}{}
			defer func() { <-m.semaphore }()

			pctx, cancel := context.WithTimeout(ctx, m.config.probeTimeout())
			defer cancel()

			res, err := m.prober.Probe(pctx, ep)
			if err != nil {
				log.Printf("⚠️  Probe error for %s: %v", formatEndpointInfo(ep), err)
				res = ProbeResult{Timestamp: time.Now(), Reachable: false}
			}
			results[i] = res
		}(i, ep)
	}
	wg.Wait()

	m.passSeq++
	pass := Pass{
		Seq:       m.passSeq,
		Timestamp: time.Now(),
		Results:   make(map[string]ProbeResult, len(endpoints)),
	}
	for i, ep := range endpoints {
		pass.Results[ep.Address] = results[i]
	}

	m.stats.Ingest(pass)
	m.history.Append(pass)
	m.alarm.Observe(pass, m.config.tickInterval())

	m.logPass(pass)
	return pass
}

// logPass writes one summary line per pass plus one line per down endpoint.
func (m *Monitor) logPass(pass Pass) {
	down := pass.DisconnectedCount()
	total := len(pass.Results)
	if down == 0 {
		log.Printf("✓ Pass %d: %d/%d endpoints reachable", pass.Seq, total, total)
		return
	}
	log.Printf("✗ Pass %d: %d/%d endpoints reachable, %s", pass.Seq, total-down, total, disconnectsPhrase(down))
	for _, ep := range m.config.Endpoints {
		if pass.EndpointDown(ep.Address) {
			log.Printf("   ✗ %s not responding", formatEndpointInfo(ep))
		}
	}
}

// logStartupInfo logs the effective settings.
func (m *Monitor) logStartupInfo() {
	log.Printf("🚀 Starting Net Sentry")
	log.Printf("   • Endpoints: %d", len(m.config.Endpoints))
	log.Printf("   • Tick Interval: %s", m.config.tickInterval())
	log.Printf("   • Probe Method: %s (timeout %s, %d attempts)", m.config.ProbeMethod, m.config.probeTimeout(), m.config.ProbeAttempts)
	log.Printf("   • Ring Capacity: %d", m.config.RingCapacity)
	log.Printf("   • Alarm Delay: %s", m.config.alarmDelay())
	log.Printf("   • Alarm Interval: %s (floor %s)", m.config.alarmInterval(), m.config.alarmIntervalFloor())
	log.Printf("   • Hush Interval: %s", m.config.hushInterval())
	if m.config.HTTPEnabled {
		log.Printf("   • HTTP Server: %s", m.config.HTTPListen)
	}
	if m.config.Email.Enabled {
		log.Printf("   • Email Announcements: enabled (%d/hour)", m.config.Email.RateLimitPerHour)
	}
	if m.config.SpeechEnabled {
		log.Printf("   • Speech Announcements: enabled")
	}
}
