package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedAnnouncement struct {
	kind    AnnouncementKind
	message string
}

// recordingAnnouncer collects emissions for assertions.
type recordingAnnouncer struct {
	calls []recordedAnnouncement
	err   error
}

func (r *recordingAnnouncer) Announce(kind AnnouncementKind, message string) error {
	r.calls = append(r.calls, recordedAnnouncement{kind: kind, message: message})
	return r.err
}

// recordingAudio collects quiet/not-quiet edges.
type recordingAudio struct {
	edges []bool
}

func (r *recordingAudio) SetQuiet(quiet bool) {
	r.edges = append(r.edges, quiet)
}

func allUpPass(seq uint64) Pass {
	return passOf(seq, map[string]ProbeResult{
		"10.0.0.1": up(5, 57),
		"10.0.0.2": up(7, 57),
	})
}

func oneDownPass(seq uint64) Pass {
	return passOf(seq, map[string]ProbeResult{
		"10.0.0.1": up(5, 57),
		"10.0.0.2": down(),
	})
}

func TestAlarmDelayDebounce(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         10 * time.Second,
		Interval:      30 * time.Second,
		IntervalFloor: time.Second,
	}, nil, &recordingAudio{}, rec)

	tick := 5 * time.Second

	am.Observe(allUpPass(1), tick)
	assert.Equal(t, PhaseQuiet, am.Snapshot().Phase)

	// first disconnect arms without announcing
	am.Observe(oneDownPass(2), tick)
	assert.Equal(t, PhaseArmed, am.Snapshot().Phase)
	assert.Empty(t, rec.calls)

	// still inside the grace period
	am.Observe(oneDownPass(3), tick)
	assert.Equal(t, PhaseArmed, am.Snapshot().Phase)
	assert.Empty(t, rec.calls)

	// grace period exhausted, first announcement fires
	am.Observe(oneDownPass(4), tick)
	assert.Equal(t, PhaseAlarming, am.Snapshot().Phase)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, AnnounceAlarm, rec.calls[0].kind)
	assert.Contains(t, rec.calls[0].message, "1 disconnect")
}

func TestAlarmZeroDelayAnnouncesImmediately(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         0,
		Interval:      30 * time.Second,
		IntervalFloor: time.Second,
	}, nil, &recordingAudio{}, rec)

	am.Observe(oneDownPass(1), 5*time.Second)
	assert.Equal(t, PhaseAlarming, am.Snapshot().Phase)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, AnnounceAlarm, rec.calls[0].kind)
}

func TestAlarmBlipClearsSilently(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	audio := &recordingAudio{}
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         20 * time.Second,
		Interval:      30 * time.Second,
		IntervalFloor: time.Second,
	}, nil, audio, rec)

	am.Observe(oneDownPass(1), 5*time.Second)
	assert.Equal(t, PhaseArmed, am.Snapshot().Phase)

	// recovered before the delay ran out: no announcement at all
	am.Observe(allUpPass(2), 5*time.Second)
	assert.Equal(t, PhaseQuiet, am.Snapshot().Phase)
	assert.Empty(t, rec.calls)

	// audio paused on arm and resumed on clear
	assert.Equal(t, []bool{false, true}, audio.edges)
}

func TestAlarmForcedAllClear(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         0,
		Interval:      30 * time.Second,
		IntervalFloor: time.Second,
	}, nil, &recordingAudio{}, rec)

	am.Observe(oneDownPass(1), 5*time.Second)
	am.Observe(allUpPass(2), 5*time.Second)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, AnnounceAlarm, rec.calls[0].kind)
	assert.Equal(t, AnnounceAllClear, rec.calls[1].kind)
	assert.Equal(t, PhaseQuiet, am.Snapshot().Phase)

	// staying up emits nothing further
	am.Observe(allUpPass(3), 5*time.Second)
	assert.Len(t, rec.calls, 2)
}

func TestAlarmRepeatSuppression(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         0,
		Interval:      15 * time.Second,
		IntervalFloor: time.Second,
	}, nil, &recordingAudio{}, rec)

	tick := 5 * time.Second

	am.Observe(oneDownPass(1), tick) // alarm
	am.Observe(oneDownPass(2), tick) // 10s remaining
	am.Observe(oneDownPass(3), tick) // 5s remaining
	assert.Len(t, rec.calls, 1)

	am.Observe(oneDownPass(4), tick) // interval exhausted, repeat
	require.Len(t, rec.calls, 2)
	assert.Equal(t, AnnounceRepeat, rec.calls[1].kind)

	am.Observe(oneDownPass(5), tick)
	assert.Len(t, rec.calls, 2)
}

func TestAlarmIntervalFloor(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	// a zero interval must not repeat on every single pass
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         0,
		Interval:      0,
		IntervalFloor: time.Second,
	}, nil, &recordingAudio{}, rec)

	tick := 500 * time.Millisecond

	am.Observe(oneDownPass(1), tick) // alarm, interval armed to the floor
	am.Observe(oneDownPass(2), tick) // 500ms remaining
	assert.Len(t, rec.calls, 1)

	am.Observe(oneDownPass(3), tick) // floor exhausted, repeat
	assert.Len(t, rec.calls, 2)
}

func TestAlarmFloorDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	am := NewAlarmStateMachine(AlarmConfig{Delay: 0, Interval: 0}, nil, &recordingAudio{}, &recordingAnnouncer{})
	assert.Equal(t, time.Second, am.cfg.IntervalFloor)
}

func TestAlarmHushStretchesRepeats(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	am := NewAlarmStateMachine(AlarmConfig{
		Delay:         0,
		Interval:      10 * time.Second,
		IntervalFloor: time.Second,
		HushInterval:  30 * time.Second,
	}, nil, &recordingAudio{}, rec)

	tick := 10 * time.Second

	am.Observe(oneDownPass(1), tick) // alarm, next repeat in 10s
	am.SetHush(true)
	assert.True(t, am.Hushed())

	am.Observe(oneDownPass(2), tick) // repeat due, rearmed to the hush interval
	require.Len(t, rec.calls, 2)

	am.Observe(oneDownPass(3), tick) // 20s remaining
	am.Observe(oneDownPass(4), tick) // 10s remaining
	assert.Len(t, rec.calls, 2)

	am.Observe(oneDownPass(5), tick) // hush interval exhausted
	assert.Len(t, rec.calls, 3)
}

func TestAlarmMessageUsesSpokenLabels(t *testing.T) {
	t.Parallel()

	rec := &recordingAnnouncer{}
	speech := map[string]string{"10.0.0.2": "office router"}
	am := NewAlarmStateMachine(AlarmConfig{Delay: 0, Interval: 30 * time.Second, IntervalFloor: time.Second}, speech, &recordingAudio{}, rec)

	am.Observe(oneDownPass(1), 5*time.Second)
	require.Len(t, rec.calls, 1)
	assert.Contains(t, rec.calls[0].message, "office router")
}

func TestAlarmAnnouncerFailureDoesNotBreakState(t *testing.T) {
	t.Parallel()

	failing := &recordingAnnouncer{err: errors.New("smtp down")}
	healthy := &recordingAnnouncer{}
	am := NewAlarmStateMachine(AlarmConfig{Delay: 0, Interval: 30 * time.Second, IntervalFloor: time.Second}, nil, &recordingAudio{}, failing, healthy)

	am.Observe(oneDownPass(1), 5*time.Second)

	assert.Equal(t, PhaseAlarming, am.Snapshot().Phase)
	assert.Len(t, failing.calls, 1)
	assert.Len(t, healthy.calls, 1)
}
