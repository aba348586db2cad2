package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
)

// PassPredicate selects passes for filtered history queries.
type PassPredicate func(Pass) bool

// DownIn returns a predicate matching passes where the given endpoint
// address was unreachable.
func DownIn(addr string) PassPredicate {
	return func(p Pass) bool { return p.EndpointDown(addr) }
}

// AnyDown matches passes with at least one unreachable endpoint.
func AnyDown(p Pass) bool { return p.DisconnectedCount() > 0 }

// HistoryLog is the ordered, append-only record of completed passes.
// Entries are immutable once appended; reads never mutate.
type HistoryLog struct {
	mu     sync.RWMutex
	passes []Pass
}

// NewHistoryLog returns an empty log.
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{}
}

// Append records a completed pass. Appends are strictly in tick order.
func (h *HistoryLog) Append(p Pass) {
	h.mu.Lock()
	h.passes = append(h.passes, p)
	h.mu.Unlock()
}

// Len returns the number of recorded passes.
func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.passes)
}

// ByIndex returns the i-th pass in append order.
func (h *HistoryLog) ByIndex(i int) (Pass, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.passes) {
		return Pass{}, false
	}
	return h.passes[i], true
}

// Latest returns the most recently appended pass.
func (h *HistoryLog) Latest() (Pass, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.passes) == 0 {
		return Pass{}, false
	}
	return h.passes[len(h.passes)-1], true
}

// Filter returns a restartable iterator over the passes matching pred,
// in append order. The iterator is finite: it covers the entries present
// when Filter was called and never blocks waiting for future appends.
func (h *HistoryLog) Filter(pred PassPredicate) *PassIterator {
	h.mu.RLock()
	snapshot := h.passes[:len(h.passes):len(h.passes)]
	h.mu.RUnlock()

	return &PassIterator{passes: snapshot, pred: pred}
}

// FirstMatching returns the lowest-index pass matching pred, or ok=false
// when no pass matches.
func (h *HistoryLog) FirstMatching(pred PassPredicate) (int, Pass, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i, p := range h.passes {
		if pred(p) {
			return i, p, true
		}
	}
	return 0, Pass{}, false
}

// PassIterator walks a filtered history snapshot lazily.
type PassIterator struct {
	passes []Pass
	pred   PassPredicate
	next   int
}

// Next returns the next matching pass, or ok=false when exhausted.
func (it *PassIterator) Next() (Pass, bool) {
	for it.next < len(it.passes) {
		p := it.passes[it.next]
		it.next++
		if it.pred == nil || it.pred(p) {
			return p, true
		}
	}
	return Pass{}, false
}

// Reset restarts the iterator over the same snapshot.
func (it *PassIterator) Reset() {
	it.next = 0
}

// passLatencyStats computes pass-wide min/mean/max/population-stddev over
// the reachable results. ok is false when no endpoint was reachable.
func passLatencyStats(p Pass) (min, mean, max, stddev float64, ok bool) {
	var sum, sqrSum float64
	n := 0
	for _, res := range p.Results {
		if !res.Reachable {
			continue
		}
		lat := res.LatencyMs
		if n == 0 || lat < min {
			min = lat
		}
		if n == 0 || lat > max {
			max = lat
		}
		sum += lat
		sqrSum += lat * lat
		n++
	}
	if n == 0 {
		return 0, 0, 0, 0, false
	}
	mean = sum / float64(n)
	stddev = math.Sqrt(math.Max(0, sqrSum/float64(n)-mean*mean))
	return min, mean, max, stddev, true
}

// WriteTo dumps the log as plain text, newest pass first. It implements
// io.WriterTo for the HTTP log download.
func (h *HistoryLog) WriteTo(w io.Writer) (int64, error) {
	h.mu.RLock()
	snapshot := h.passes[:len(h.passes):len(h.passes)]
	h.mu.RUnlock()

	var written int64
	for i := len(snapshot) - 1; i >= 0; i-- {
		p := snapshot[i]
		var line strings.Builder
		fmt.Fprintf(&line, "[%s] Pass %d: %s", p.Timestamp.Format("2006.01.02 15:04:05"), p.Seq, disconnectsPhrase(p.DisconnectedCount()))
		if down := p.Disconnected(); len(down) > 0 {
			fmt.Fprintf(&line, " (%s)", strings.Join(down, ","))
		}
		if min, mean, max, stddev, ok := passLatencyStats(p); ok {
			fmt.Fprintf(&line, ", response time Min %.0f, Avg %.0f, Max %.0f, StdDev %.0f", min, mean, max, stddev)
		}
		line.WriteString("\n")
		n, err := io.WriteString(w, line.String())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
