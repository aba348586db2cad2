package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
)

// Session represents an authenticated session
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// LoginAttempt tracks failed login attempts per IP
type LoginAttempt struct {
	Count       int
	LockedUntil time.Time
}

// SessionManager manages user sessions and login attempt lockouts
type SessionManager struct {
	sessions      map[string]*Session
	loginAttempts map[string]*LoginAttempt
	mu            sync.RWMutex
	config        *Config
}

// NewSessionManager creates a session manager and starts its cleanup loop
func NewSessionManager(config *Config) *SessionManager {
	sm := &SessionManager{
		sessions:      make(map[string]*Session),
		loginAttempts: make(map[string]*LoginAttempt),
		config:        config,
	}

	go sm.cleanupExpired()

	return sm
}

// cleanupExpired periodically removes expired sessions and lockouts
func (sm *SessionManager) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sm.mu.Lock()
		now := time.Now()
		for token, session := range sm.sessions {
			if now.After(session.ExpiresAt) {
				delete(sm.sessions, token)
			}
		}
		for ip, attempt := range sm.loginAttempts {
			if attempt.Count >= sm.config.MaxLoginAttempts && now.After(attempt.LockedUntil) {
				delete(sm.loginAttempts, ip)
			}
		}
		sm.mu.Unlock()
	}
}

// GenerateArgon2Hash generates an Argon2id hash of the password in the
// standard $argon2id$... encoding
func GenerateArgon2Hash(password string, memory uint32, timeCost uint32, threads uint8) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, 32)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, timeCost, threads, encodedSalt, encodedHash), nil
}

// VerifyArgon2Hash verifies a password against an encoded Argon2id hash
func VerifyArgon2Hash(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, fmt.Errorf("invalid algorithm")
	}

	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}

	hash := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(hash, expected) == 1, nil
}

// CreateSession creates a new session and returns its token
func (sm *SessionManager) CreateSession() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	sm.mu.Lock()
	sm.sessions[token] = &Session{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(sm.config.SessionTimeoutMinutes) * time.Minute),
	}
	sm.mu.Unlock()

	return token, nil
}

// ValidateSession checks if a session token is valid and unexpired
func (sm *SessionManager) ValidateSession(token string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	return exists && time.Now().Before(session.ExpiresAt)
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}

// RecordFailedLogin records a failed login attempt and locks the IP out
// past the configured attempt budget
func (sm *SessionManager) RecordFailedLogin(ip string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	attempt, exists := sm.loginAttempts[ip]
	if !exists {
		attempt = &LoginAttempt{}
		sm.loginAttempts[ip] = attempt
	}

	attempt.Count++
	if attempt.Count >= sm.config.MaxLoginAttempts {
		attempt.LockedUntil = time.Now().Add(time.Duration(sm.config.LockoutDurationMinutes) * time.Minute)
		log.Printf("🔒 IP %s locked out after %d failed login attempts", ip, attempt.Count)
	}
}

// IsLockedOut checks if an IP is currently locked out
func (sm *SessionManager) IsLockedOut(ip string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	attempt, exists := sm.loginAttempts[ip]
	if !exists {
		return false
	}
	return attempt.Count >= sm.config.MaxLoginAttempts && time.Now().Before(attempt.LockedUntil)
}

// ResetLoginAttempts clears the attempt record for an IP
func (sm *SessionManager) ResetLoginAttempts(ip string) {
	sm.mu.Lock()
	delete(sm.loginAttempts, ip)
	sm.mu.Unlock()
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Net Sentry Login</title></head>
<body>
<h1>Net Sentry</h1>
{{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
<form method="POST" action="/login">
<input type="password" name="password" placeholder="Password" autofocus>
<button type="submit">Login</button>
</form>
</body>
</html>`))

// authMiddleware requires a valid session cookie when auth is enabled
func (m *Monitor) authMiddleware(sm *SessionManager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.config.AuthEnabled {
			next(w, r)
			return
		}

		cookie, err := r.Cookie("session")
		if err != nil || !sm.ValidateSession(cookie.Value) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next(w, r)
	}
}

// handleLogin serves the login page and processes submissions
func (m *Monitor) handleLogin(sm *SessionManager) http.HandlerFunc {
	render := func(w http.ResponseWriter, status int, errMsg string) {
		w.WriteHeader(status)
		if err := loginTemplate.Execute(w, struct{ Error string }{Error: errMsg}); err != nil {
			log.Printf("⚠️  Template error: %v", err)
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			render(w, http.StatusOK, "")

		case http.MethodPost:
			ip := getClientIP(r)

			if sm.IsLockedOut(ip) {
				render(w, http.StatusTooManyRequests, "Too many failed attempts. Please try again later.")
				return
			}

			valid, err := VerifyArgon2Hash(r.FormValue("password"), m.config.PasswordHash)
			if err != nil || !valid {
				sm.RecordFailedLogin(ip)
				log.Printf("⚠️  Failed login attempt from %s", ip)
				render(w, http.StatusUnauthorized, "Invalid password")
				return
			}

			sm.ResetLoginAttempts(ip)

			token, err := sm.CreateSession()
			if err != nil {
				http.Error(w, "Failed to create session", http.StatusInternalServerError)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     "session",
				Value:    token,
				Path:     "/",
				MaxAge:   m.config.SessionTimeoutMinutes * 60,
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})

			log.Printf("✅ Successful login from %s", ip)
			http.Redirect(w, r, "/", http.StatusSeeOther)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleLogout clears the session and cookie
func (m *Monitor) handleLogout(sm *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session"); err == nil {
			sm.DeleteSession(cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "session",
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
