package main

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// SystemProber shells out to the platform ping binary and parses its
// textual output. It exists for hosts where unprivileged ICMP sockets are
// unavailable. The output may be localized and non-UTF-8 (notably on
// Windows consoles); decoding is configurable by IANA charset name.
type SystemProber struct {
	timeout time.Duration
	decoder *encoding.Decoder // nil means treat output as UTF-8
}

// NewSystemProber builds a system-ping prober. encodingName is an IANA
// charset label such as "IBM437"; empty means UTF-8.
func NewSystemProber(timeout time.Duration, encodingName string) (*SystemProber, error) {
	pr := &SystemProber{timeout: timeout}
	if encodingName != "" {
		enc, err := ianaindex.IANA.Encoding(encodingName)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unknown ping output encoding %q", encodingName)
		}
		pr.decoder = enc.NewDecoder()
	}
	return pr, nil
}

// pingArgs builds the single-echo ping invocation for the current platform.
func pingArgs(addr string, timeout time.Duration) []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"ping", "-n", "1", "-w", strconv.Itoa(int(timeout.Milliseconds())), addr}
	case "darwin":
		return []string{"ping", "-c", "1", "-W", strconv.Itoa(int(timeout.Milliseconds())), addr}
	default:
		// linux and the rest of the unix family take whole seconds
		secs := int(math.Ceil(timeout.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return []string{"ping", "-n", "-c", "1", "-W", strconv.Itoa(secs), addr}
	}
}

// Probe runs one ping, decodes the output, and extracts latency and TTL.
// A non-zero ping exit is an ordinary unreachable result, not an error;
// only failing to spawn the binary is reported as an error.
func (pr *SystemProber) Probe(ctx context.Context, ep Endpoint) (ProbeResult, error) {
	args := pingArgs(ep.Address, pr.timeout)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	now := time.Now()
	if err != nil {
		if _, exited := err.(*exec.ExitError); exited || ctx.Err() != nil {
			return ProbeResult{Timestamp: now, Reachable: false}, nil
		}
		return ProbeResult{}, fmt.Errorf("running %s: %v", args[0], err)
	}

	text := string(out)
	if pr.decoder != nil {
		if decoded, derr := pr.decoder.String(text); derr == nil {
			text = decoded
		}
	}

	latencyMs, ttl, ok := parsePingOutput(text)
	if !ok {
		return ProbeResult{Timestamp: now, Reachable: false}, nil
	}

	return ProbeResult{Timestamp: now, Reachable: true, LatencyMs: latencyMs, TTL: ttl}, nil
}

var (
	// "time=12.3 ms" (linux), "time=12ms" and "time<1ms" (windows, any
	// locale that keeps the latin token), "0.023/0.023/..." is not matched
	// on purpose: a reply line is required.
	pingTimeRe = regexp.MustCompile(`(?i)time[=<]\s*([0-9]+(?:[.,][0-9]+)?)`)
	pingTTLRe  = regexp.MustCompile(`(?i)ttl[=:]\s*([0-9]+)`)
)

// parsePingOutput pulls round-trip time (ms) and TTL out of ping's reply
// text. ok is false when no reply line with a time token is present or the
// reply declares the destination unreachable.
func parsePingOutput(text string) (latencyMs float64, ttl int, ok bool) {
	if strings.Contains(strings.ToLower(text), "unreachable") {
		return 0, 0, false
	}

	m := pingTimeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	latencyMs, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, 0, false
	}

	if tm := pingTTLRe.FindStringSubmatch(text); tm != nil {
		ttl, _ = strconv.Atoi(tm[1])
	}

	return latencyMs, ttl, true
}
