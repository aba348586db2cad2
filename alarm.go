package main

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Announcer delivers an alarm machine emission to a collaborator (voice,
// email, ...). Delivery failure is the collaborator's problem: it is logged
// at the boundary and never affects state tracking.
type Announcer interface {
	Announce(kind AnnouncementKind, message string) error
}

// AudioController reacts to the quiet/not-quiet edge: a quiet background
// track plays while everything is up and pauses while anything is down.
type AudioController interface {
	SetQuiet(quiet bool)
}

// AlarmConfig carries the debounce and suppression settings.
type AlarmConfig struct {
	// Delay is the grace period between first detecting a disconnect and
	// the first announcement. Zero announces immediately.
	Delay time.Duration
	// Interval is the requested spacing between repeat announcements.
	Interval time.Duration
	// IntervalFloor clamps Interval from below so repeats can never be
	// fully suppressed. Must be strictly positive.
	IntervalFloor time.Duration
	// HushInterval replaces Interval while the operator hush is active.
	HushInterval time.Duration
}

// AlarmSnapshot is a read-only view of the machine for renderers.
type AlarmSnapshot struct {
	Phase             AlarmPhase    `json:"phase"`
	DelayRemaining    time.Duration `json:"delay_remaining"`
	IntervalRemaining time.Duration `json:"interval_remaining"`
	Disconnected      int           `json:"disconnected"`
	Hushed            bool          `json:"hushed"`
	Since             time.Time     `json:"since"`
}

// AlarmStateMachine tracks the global alarm condition from the per-pass
// disconnect count. Observe is called exactly once per fully joined pass,
// by the coordinating goroutine only; the mutex guards the snapshot and
// hush accessors used by the HTTP surface.
type AlarmStateMachine struct {
	mu  sync.Mutex
	cfg AlarmConfig

	phase             AlarmPhase
	delayRemaining    time.Duration
	intervalRemaining time.Duration
	lastDisconnected  int
	hushed            bool
	since             time.Time

	speech     map[string]string // endpoint address -> spoken label
	announcers []Announcer
	audio      AudioController
}

// NewAlarmStateMachine creates a machine in QUIET. The speech map labels
// disconnected endpoints in announcement messages.
func NewAlarmStateMachine(cfg AlarmConfig, speech map[string]string, audio AudioController, announcers ...Announcer) *AlarmStateMachine {
	if cfg.IntervalFloor <= 0 {
		cfg.IntervalFloor = time.Second
	}
	if audio == nil {
		audio = LogAudioController{}
	}
	return &AlarmStateMachine{
		cfg:        cfg,
		phase:      PhaseQuiet,
		since:      time.Now(),
		speech:     speech,
		announcers: announcers,
		audio:      audio,
	}
}

// effectiveInterval is the repeat spacing currently in force: the hush
// interval while hushed, the configured interval otherwise, never below
// the floor.
func (am *AlarmStateMachine) effectiveInterval() time.Duration {
	iv := am.cfg.Interval
	if am.hushed && am.cfg.HushInterval > iv {
		iv = am.cfg.HushInterval
	}
	if iv < am.cfg.IntervalFloor {
		iv = am.cfg.IntervalFloor
	}
	return iv
}

// Observe advances the machine by one completed pass. elapsed is the tick
// period, the time this pass accounts for in the countdowns.
func (am *AlarmStateMachine) Observe(pass Pass, elapsed time.Duration) {
	am.mu.Lock()
	defer am.mu.Unlock()

	count := pass.DisconnectedCount()

	switch am.phase {
	case PhaseQuiet:
		if count > 0 {
			am.phase = PhaseArmed
			am.since = pass.Timestamp
			am.delayRemaining = am.cfg.Delay
			am.audio.SetQuiet(false)
			log.Printf("🟡 Alarm armed: %s, delay %s", disconnectsPhrase(count), am.cfg.Delay)
			if am.delayRemaining <= 0 {
				am.raise(pass, count)
			}
		}

	case PhaseArmed:
		if count == 0 {
			// transient blip inside the grace period, debounced silently
			am.toQuiet(pass, false)
			log.Printf("🟢 Alarm disarmed: blip cleared within delay")
		} else {
			am.delayRemaining -= elapsed
			if am.delayRemaining <= 0 {
				am.raise(pass, count)
			}
		}

	case PhaseAlarming:
		if count == 0 {
			am.toQuiet(pass, true)
		} else {
			am.intervalRemaining -= elapsed
			if am.intervalRemaining <= 0 {
				am.emit(AnnounceRepeat, am.message(pass, count))
				am.intervalRemaining = am.effectiveInterval()
			}
		}
	}

	am.lastDisconnected = count
}

// raise moves ARMED (or freshly armed QUIET with zero delay) to ALARMING
// and emits the first announcement immediately.
func (am *AlarmStateMachine) raise(pass Pass, count int) {
	am.phase = PhaseAlarming
	am.delayRemaining = 0
	am.emit(AnnounceAlarm, am.message(pass, count))
	am.intervalRemaining = am.effectiveInterval()
}

// toQuiet returns to QUIET. The forced all-clear is announced only when
// leaving ALARMING: an ARMED blip was never announced, so it clears
// silently.
func (am *AlarmStateMachine) toQuiet(pass Pass, announce bool) {
	am.phase = PhaseQuiet
	am.since = pass.Timestamp
	am.delayRemaining = 0
	am.intervalRemaining = 0
	am.audio.SetQuiet(true)
	if announce {
		am.emit(AnnounceAllClear, "All clear: all endpoints responding")
	}
}

// message builds the spoken/delivered alarm text, naming the down
// endpoints.
func (am *AlarmStateMachine) message(pass Pass, count int) string {
	labels := make([]string, 0, count)
	for _, addr := range pass.Disconnected() {
		if label, ok := am.speech[addr]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, addr)
		}
	}
	return fmt.Sprintf("Alarm: %s: %s", disconnectsPhrase(count), strings.Join(labels, ", "))
}

func (am *AlarmStateMachine) emit(kind AnnouncementKind, message string) {
	for _, a := range am.announcers {
		if err := a.Announce(kind, message); err != nil {
			log.Printf("⚠️  Announcement (%s) delivery failed: %v", kind, err)
		}
	}
}

// SetHush toggles the operator hush. Hush stretches the spacing between
// repeats to the hush interval without changing state and without
// defeating the interval floor.
func (am *AlarmStateMachine) SetHush(hushed bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.hushed = hushed
	if hushed {
		log.Printf("🤫 Hush enabled: repeat spacing %s", am.cfg.HushInterval)
	} else {
		log.Printf("📣 Hush disabled")
	}
}

// Hushed reports whether the operator hush is active.
func (am *AlarmStateMachine) Hushed() bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.hushed
}

// Snapshot returns a consistent read-only view of the machine.
func (am *AlarmStateMachine) Snapshot() AlarmSnapshot {
	am.mu.Lock()
	defer am.mu.Unlock()

	return AlarmSnapshot{
		Phase:             am.phase,
		DelayRemaining:    am.delayRemaining,
		IntervalRemaining: am.intervalRemaining,
		Disconnected:      am.lastDisconnected,
		Hushed:            am.hushed,
		Since:             am.since,
	}
}

func disconnectsPhrase(count int) string {
	if count == 1 {
		return "1 disconnect"
	}
	return fmt.Sprintf("%d disconnects", count)
}
