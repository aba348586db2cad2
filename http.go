package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// The HTTP surface is a read-only renderer over the core: it serves
// snapshots and history queries and never reaches into a half-updated
// buffer (every accessor it uses takes a consistent view under the
// owning component's lock). The only write it can perform is the operator
// hush toggle.

// Allow checks if a request from the given IP is allowed
func (rl *HTTPRateLimiter) Allow(ip string) bool {
	if rl == nil {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	requests := rl.requests[ip]
	valid := make([]time.Time, 0, len(requests))
	for _, t := range requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return false
	}

	valid = append(valid, now)
	rl.requests[ip] = valid
	return true
}

// Cleanup removes IPs whose requests have all aged out
func (rl *HTTPRateLimiter) Cleanup() {
	if rl == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window * 2)
	for ip, requests := range rl.requests {
		allOld := true
		for _, t := range requests {
			if t.After(cutoff) {
				allOld = false
				break
			}
		}
		if allOld {
			delete(rl.requests, ip)
		}
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimitMiddleware wraps a handler with per-IP rate limiting
func (m *Monitor) rateLimitMiddleware(rl *HTTPRateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rl != nil {
			ip := getClientIP(r)
			if !rl.Allow(ip) {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				log.Printf("⚠️  Rate limit exceeded for IP: %s", ip)
				return
			}
		}
		next(w, r)
	}
}

// endpointView is the JSON shape of one endpoint in the state snapshot.
type endpointView struct {
	Name    string       `json:"name"`
	Address string       `json:"address"`
	Geo     *GeoLoc      `json:"geoloc,omitempty"`
	Latest  *ProbeResult `json:"latest,omitempty"`
	Stats   DerivedStats `json:"stats"`
}

// handleState serves the full read-only snapshot: alarm state plus the
// latest result and derived stats per endpoint.
func (m *Monitor) handleState(w http.ResponseWriter, r *http.Request) {
	views := make([]endpointView, 0, len(m.config.Endpoints))
	for _, ep := range m.config.Endpoints {
		view := endpointView{Name: ep.Name, Address: ep.Address, Geo: ep.Geo}
		if res, ok := m.stats.Latest(ep.Address); ok {
			view.Latest = &res
		}
		view.Stats, _ = m.stats.Stats(ep.Address)
		views = append(views, view)
	}

	payload := struct {
		Alarm     AlarmSnapshot  `json:"alarm"`
		Passes    int            `json:"passes"`
		Endpoints []endpointView `json:"endpoints"`
	}{
		Alarm:     m.alarm.Snapshot(),
		Passes:    m.history.Len(),
		Endpoints: views,
	}

	writeJSON(w, payload)
}

// passView is the JSON shape of one pass in history responses.
type passView struct {
	Seq          uint64    `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Disconnected []string  `json:"disconnected,omitempty"`
}

func toPassView(p Pass) passView {
	return passView{Seq: p.Seq, Timestamp: p.Timestamp, Disconnected: p.Disconnected()}
}

// handleHistory serves recorded passes, optionally filtered to those where
// ?endpoint=<addr> was down, newest last, capped by ?limit= (default 100).
func (m *Monitor) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var pred PassPredicate
	if addr := r.URL.Query().Get("endpoint"); addr != "" {
		pred = DownIn(addr)
	}

	views := make([]passView, 0, limit)
	it := m.history.Filter(pred)
	for p, ok := it.Next(); ok; p, ok = it.Next() {
		views = append(views, toPassView(p))
	}
	if len(views) > limit {
		views = views[len(views)-limit:]
	}

	writeJSON(w, views)
}

// handleFirstDown serves the first pass where ?endpoint=<addr> was down.
func (m *Monitor) handleFirstDown(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("endpoint")
	if addr == "" {
		http.Error(w, "endpoint parameter required", http.StatusBadRequest)
		return
	}

	index, pass, ok := m.history.FirstMatching(DownIn(addr))
	if !ok {
		http.Error(w, "no matching pass", http.StatusNotFound)
		return
	}

	writeJSON(w, struct {
		Index int      `json:"index"`
		Pass  passView `json:"pass"`
	}{Index: index, Pass: toPassView(pass)})
}

// handleLogDump streams the pass log as plain text, newest first.
func (m *Monitor) handleLogDump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := m.history.WriteTo(w); err != nil {
		log.Printf("⚠️  Log dump aborted: %v", err)
	}
}

// handleHush toggles the operator hush
func (m *Monitor) handleHush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hushed := !m.alarm.Hushed()
	m.alarm.SetHush(hushed)

	writeJSON(w, struct {
		Hushed bool `json:"hushed"`
	}{Hushed: hushed})
}

// handleLiveness answers plainly so load balancers need no auth
func (m *Monitor) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "OK\n")
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>Net Sentry</title></head>
<body>
<h1>Net Sentry</h1>
<p>Alarm: <strong>{{.Phase}}</strong> · {{.Disconnected}} down{{if .Hushed}} (hushed){{end}}</p>
<p>Passes recorded: {{.Passes}}</p>
<table border="1" cellpadding="4">
<tr><th>Endpoint</th><th>Address</th><th>Up</th><th>Latency</th><th>Mean</th><th>StdDev</th><th>Min</th><th>OS guess</th><th>Geo</th></tr>
{{range .Endpoints}}<tr>
<td>{{.Name}}</td><td>{{.Address}}</td><td>{{.Up}}</td><td>{{.Latency}}</td>
<td>{{.Mean}}</td><td>{{.StdDev}}</td><td>{{.Min}}</td><td>{{.OS}}</td><td>{{.Geo}}</td>
</tr>{{end}}
</table>
<p><a href="/log.txt">pass log</a> · <a href="/api/state">state JSON</a></p>
</body>
</html>`))

// handleRoot renders a minimal HTML dashboard over the same snapshot the
// JSON API serves.
func (m *Monitor) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	type row struct {
		Name, Address, Up, Latency, Mean, StdDev, Min, OS, Geo string
	}

	na := "n/a"
	rows := make([]row, 0, len(m.config.Endpoints))
	for _, ep := range m.config.Endpoints {
		rw := row{Name: ep.Name, Address: ep.Address, Up: na, Latency: na, Mean: na, StdDev: na, Min: na, OS: na}
		if ep.Geo != nil {
			rw.Geo = ep.Geo.String()
		}
		if res, ok := m.stats.Latest(ep.Address); ok {
			if res.Reachable {
				rw.Up = "YES"
				rw.Latency = fmt.Sprintf("%.1f ms", res.LatencyMs)
			} else {
				rw.Up = "NO"
			}
		}
		if stats, ok := m.stats.Stats(ep.Address); ok && stats.Available {
			rw.Mean = fmt.Sprintf("%.1f ms", stats.MeanMs)
			rw.StdDev = fmt.Sprintf("%.1f ms", stats.StdDevMs)
			rw.Min = fmt.Sprintf("%.1f ms", stats.MinMs)
			if stats.HasTTL {
				rw.OS = fmt.Sprintf("%s (%d hops?)", stats.OSGuess, stats.HopsGuess)
			}
		}
		rows = append(rows, rw)
	}

	snap := m.alarm.Snapshot()
	data := struct {
		Phase        string
		Disconnected int
		Hushed       bool
		Passes       int
		Endpoints    []row
	}{
		Phase:        snap.Phase.String(),
		Disconnected: snap.Disconnected,
		Hushed:       snap.Hushed,
		Passes:       m.history.Len(),
		Endpoints:    rows,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		log.Printf("⚠️  Template error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  JSON encode error: %v", err)
	}
}

// startHTTPServer wires the mux and serves in the background
func (m *Monitor) startHTTPServer() {
	var rl *HTTPRateLimiter
	if m.config.HTTPRateLimitPerMinute > 0 {
		rl = &HTTPRateLimiter{
			requests: make(map[string][]time.Time),
			limit:    m.config.HTTPRateLimitPerMinute,
			window:   time.Minute,
		}
	}

	sessions := NewSessionManager(&m.config)

	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return m.rateLimitMiddleware(rl, m.authMiddleware(sessions, h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", protect(m.handleRoot))
	mux.HandleFunc("/status", m.handleLiveness)
	mux.HandleFunc("/api/state", protect(m.handleState))
	mux.HandleFunc("/api/history", protect(m.handleHistory))
	mux.HandleFunc("/api/history/first_down", protect(m.handleFirstDown))
	mux.HandleFunc("/log.txt", protect(m.handleLogDump))
	mux.HandleFunc("/hush", protect(m.handleHush))
	if m.config.AuthEnabled {
		mux.HandleFunc("/login", m.rateLimitMiddleware(rl, m.handleLogin(sessions)))
		mux.HandleFunc("/logout", m.handleLogout(sessions))
	}

	if rl != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				rl.Cleanup()
			}
		}()
	}

	go func() {
		log.Printf("🌐 Starting HTTP server on %s", m.config.HTTPListen)
		if err := http.ListenAndServe(m.config.HTTPListen, mux); err != nil {
			log.Printf("❌ HTTP server error: %v", err)
		}
	}()
}
