package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyFixture() *HistoryLog {
	h := NewHistoryLog()
	h.Append(allUpPass(1))
	h.Append(oneDownPass(2))
	h.Append(allUpPass(3))
	h.Append(oneDownPass(4))
	h.Append(oneDownPass(5))
	return h
}

func TestHistoryAppendOrder(t *testing.T) {
	t.Parallel()

	h := historyFixture()
	require.Equal(t, 5, h.Len())

	p, ok := h.ByIndex(0)
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.Seq)

	p, ok = h.ByIndex(4)
	require.True(t, ok)
	assert.Equal(t, uint64(5), p.Seq)

	_, ok = h.ByIndex(5)
	assert.False(t, ok)
	_, ok = h.ByIndex(-1)
	assert.False(t, ok)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), latest.Seq)
}

func TestHistoryLatestEmpty(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog()
	_, ok := h.Latest()
	assert.False(t, ok)
}

func TestHistoryFilterPreservesOrder(t *testing.T) {
	t.Parallel()

	h := historyFixture()

	var seqs []uint64
	it := h.Filter(DownIn("10.0.0.2"))
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		seqs = append(seqs, p.Seq)
	}
	assert.Equal(t, []uint64{2, 4, 5}, seqs)

	// a nil predicate matches every pass
	it = h.Filter(nil)
	n := 0
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 5, n)
}

func TestHistoryIteratorReset(t *testing.T) {
	t.Parallel()

	h := historyFixture()
	it := h.Filter(AnyDown)

	first, ok := it.Next()
	require.True(t, ok)
	it.Reset()
	again, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, first.Seq, again.Seq)
}

func TestHistoryIteratorIsSnapshot(t *testing.T) {
	t.Parallel()

	h := historyFixture()
	it := h.Filter(AnyDown)

	// appends after Filter are not visible to the iterator
	h.Append(oneDownPass(6))

	var seqs []uint64
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		seqs = append(seqs, p.Seq)
	}
	assert.Equal(t, []uint64{2, 4, 5}, seqs)
	assert.Equal(t, 6, h.Len())
}

func TestHistoryFirstMatching(t *testing.T) {
	t.Parallel()

	h := historyFixture()

	idx, p, ok := h.FirstMatching(DownIn("10.0.0.2"))
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, uint64(2), p.Seq)

	_, _, ok = h.FirstMatching(DownIn("192.0.2.9"))
	assert.False(t, ok)
}

func TestHistoryWriteTo(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog()
	h.Append(Pass{
		Seq:       1,
		Timestamp: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
		Results: map[string]ProbeResult{
			"10.0.0.1": up(10, 57),
			"10.0.0.2": up(30, 57),
		},
	})
	h.Append(Pass{
		Seq:       2,
		Timestamp: time.Date(2026, 8, 26, 10, 0, 5, 0, time.UTC),
		Results: map[string]ProbeResult{
			"10.0.0.1": up(12, 57),
			"10.0.0.2": down(),
		},
	})

	var sb strings.Builder
	n, err := h.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(len(sb.String())), n)

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	// newest first
	assert.Contains(t, lines[0], "Pass 2")
	assert.Contains(t, lines[0], "1 disconnect")
	assert.Contains(t, lines[0], "(10.0.0.2)")
	assert.Contains(t, lines[1], "Pass 1")
	assert.Contains(t, lines[1], "0 disconnects")
	assert.Contains(t, lines[1], "Min 10, Avg 20, Max 30, StdDev 10")
}

func TestPassLatencyStats(t *testing.T) {
	t.Parallel()

	p := passOf(1, map[string]ProbeResult{
		"a": up(10, 57),
		"b": up(20, 57),
		"c": up(30, 57),
		"d": down(),
	})

	min, mean, max, stddev, ok := passLatencyStats(p)
	require.True(t, ok)
	assert.InDelta(t, 10.0, min, 1e-9)
	assert.InDelta(t, 20.0, mean, 1e-9)
	assert.InDelta(t, 30.0, max, 1e-9)
	assert.InDelta(t, 8.16496580927726, stddev, 1e-9)

	_, _, _, _, ok = passLatencyStats(passOf(2, map[string]ProbeResult{"a": down()}))
	assert.False(t, ok)
}
