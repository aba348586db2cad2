package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config represents the immutable startup configuration
type Config struct {
	TickIntervalMs            int    `json:"tick_interval_ms"`
	ProbeTimeoutMs            int    `json:"probe_timeout_ms"`
	ProbeAttempts             int    `json:"probe_attempts"`
	ProbeMethod               string `json:"probe_method"`  // "icmp" or "system"
	PingEncoding              string `json:"ping_encoding"` // IANA charset of system ping output
	MaxConcurrentProbes       int    `json:"max_concurrent_probes"`
	RingCapacity              int    `json:"ring_capacity"`
	AlarmDelaySeconds         int    `json:"alarm_delay_seconds"`
	AlarmIntervalSeconds      int    `json:"alarm_interval_seconds"`
	AlarmIntervalFloorSeconds int    `json:"alarm_interval_floor_seconds"`
	HushIntervalSeconds       int    `json:"hush_interval_seconds"`
	SpeechEnabled             bool   `json:"speech_enabled"`
	SpeechCommand             string `json:"speech_command,omitempty"`

	HTTPEnabled            bool   `json:"http_enabled"`
	HTTPListen             string `json:"http_listen"`
	HTTPRateLimitPerMinute int    `json:"http_rate_limit_per_minute"`

	AuthEnabled            bool   `json:"auth_enabled"`
	PasswordHash           string `json:"password_hash,omitempty"`
	Argon2Memory           uint32 `json:"argon2_memory,omitempty"`
	Argon2Time             uint32 `json:"argon2_time,omitempty"`
	Argon2Threads          uint8  `json:"argon2_threads,omitempty"`
	SessionTimeoutMinutes  int    `json:"session_timeout_minutes,omitempty"`
	MaxLoginAttempts       int    `json:"max_login_attempts,omitempty"`
	LockoutDurationMinutes int    `json:"lockout_duration_minutes,omitempty"`

	Email     EmailConfig `json:"email"`
	Endpoints []Endpoint  `json:"endpoints"`
}

// EmailConfig configures the Brevo email announcer
type EmailConfig struct {
	Enabled          bool   `json:"enabled"`
	APIKey           string `json:"api_key,omitempty"`
	From             string `json:"from,omitempty"`
	To               string `json:"to,omitempty"`
	RateLimitPerHour int    `json:"rate_limit_per_hour,omitempty"`
	CooldownMinutes  int    `json:"cooldown_minutes,omitempty"`
}

func (c Config) tickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c Config) probeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

func (c Config) alarmDelay() time.Duration {
	return time.Duration(c.AlarmDelaySeconds) * time.Second
}

func (c Config) alarmInterval() time.Duration {
	return time.Duration(c.AlarmIntervalSeconds) * time.Second
}

func (c Config) alarmIntervalFloor() time.Duration {
	return time.Duration(c.AlarmIntervalFloorSeconds) * time.Second
}

func (c Config) hushInterval() time.Duration {
	return time.Duration(c.HushIntervalSeconds) * time.Second
}

// loadConfig loads configuration from a JSON file and fills in defaults
func loadConfig(filename string) (Config, error) {
	var config Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %v", err)
	}

	applyDefaults(&config)

	return config, nil
}

// applyDefaults fills in zero-valued settings
func applyDefaults(config *Config) {
	if config.TickIntervalMs == 0 {
		config.TickIntervalMs = 5000
	}
	if config.ProbeTimeoutMs == 0 {
		config.ProbeTimeoutMs = 1000
	}
	if config.ProbeAttempts == 0 {
		config.ProbeAttempts = 1
	}
	if config.ProbeMethod == "" {
		config.ProbeMethod = "icmp"
	}
	if config.MaxConcurrentProbes == 0 {
		config.MaxConcurrentProbes = 50
	}
	if config.RingCapacity == 0 {
		config.RingCapacity = 9
	}
	if config.AlarmIntervalSeconds == 0 {
		config.AlarmIntervalSeconds = 30
	}
	if config.AlarmIntervalFloorSeconds == 0 {
		config.AlarmIntervalFloorSeconds = 1
	}
	if config.HushIntervalSeconds == 0 {
		config.HushIntervalSeconds = 30
	}
	if config.HTTPRateLimitPerMinute == 0 {
		config.HTTPRateLimitPerMinute = 60
	}
	if config.SessionTimeoutMinutes == 0 {
		config.SessionTimeoutMinutes = 60
	}
	if config.MaxLoginAttempts == 0 {
		config.MaxLoginAttempts = 5
	}
	if config.LockoutDurationMinutes == 0 {
		config.LockoutDurationMinutes = 15
	}
	if config.Email.RateLimitPerHour == 0 {
		config.Email.RateLimitPerHour = 60
	}
	if config.Email.CooldownMinutes == 0 {
		config.Email.CooldownMinutes = 15
	}
}

// ValidateConfig validates the configuration, collecting every problem
// before reporting
func ValidateConfig(config Config) error {
	errors := make([]string, 0)

	if config.TickIntervalMs <= 0 {
		errors = append(errors, "tick_interval_ms must be greater than 0")
	}
	if config.ProbeTimeoutMs <= 0 {
		errors = append(errors, "probe_timeout_ms must be greater than 0")
	}
	if config.ProbeTimeoutMs > config.TickIntervalMs {
		errors = append(errors, "probe_timeout_ms should not exceed tick_interval_ms")
	}
	if config.ProbeAttempts < 1 || config.ProbeAttempts > 10 {
		errors = append(errors, "probe_attempts must be between 1 and 10")
	}
	if config.ProbeMethod != "icmp" && config.ProbeMethod != "system" {
		errors = append(errors, "probe_method must be 'icmp' or 'system'")
	}
	if config.PingEncoding != "" && config.ProbeMethod != "system" {
		errors = append(errors, "ping_encoding only applies to probe_method 'system'")
	}
	if config.MaxConcurrentProbes < 1 {
		errors = append(errors, "max_concurrent_probes must be at least 1")
	}
	if config.RingCapacity < 1 {
		errors = append(errors, "ring_capacity must be at least 1")
	}
	if config.AlarmDelaySeconds < 0 {
		errors = append(errors, "alarm_delay_seconds cannot be negative")
	}
	if config.AlarmIntervalSeconds < 0 {
		errors = append(errors, "alarm_interval_seconds cannot be negative")
	}
	if config.AlarmIntervalFloorSeconds < 1 {
		errors = append(errors, "alarm_interval_floor_seconds must be at least 1")
	}
	if config.HushIntervalSeconds < 1 {
		errors = append(errors, "hush_interval_seconds must be at least 1")
	}

	if config.HTTPEnabled && config.HTTPListen == "" {
		errors = append(errors, "http_listen must be set when http_enabled is true")
	}

	if config.AuthEnabled {
		if !config.HTTPEnabled {
			errors = append(errors, "auth_enabled requires http_enabled")
		}
		if config.PasswordHash == "" {
			errors = append(errors, "password_hash must be set when auth_enabled is true (use -set-password)")
		}
	}

	if config.Email.Enabled {
		if config.Email.APIKey == "" || config.Email.APIKey == "your-brevo-api-key-here" {
			errors = append(errors, "email.api_key must be configured with a valid Brevo API key")
		}
		if !strings.Contains(config.Email.From, "@") {
			errors = append(errors, "email.from must be a valid email address")
		}
		if !strings.Contains(config.Email.To, "@") {
			errors = append(errors, "email.to must be a valid email address")
		}
	}

	if len(config.Endpoints) == 0 {
		errors = append(errors, "at least one endpoint must be configured")
	}
	if len(config.Endpoints) > 1000 {
		errors = append(errors, "maximum 1000 endpoints supported")
	}

	names := make(map[string]bool)
	addrs := make(map[string]bool)

	for i, ep := range config.Endpoints {
		if ep.Name == "" {
			errors = append(errors, fmt.Sprintf("endpoint[%d].name cannot be empty", i))
		}
		if names[ep.Name] {
			errors = append(errors, fmt.Sprintf("duplicate endpoint name: %s", ep.Name))
		}
		names[ep.Name] = true

		if ep.Address == "" {
			errors = append(errors, fmt.Sprintf("endpoint[%d].address cannot be empty", i))
		}
		if addrs[ep.Address] {
			errors = append(errors, fmt.Sprintf("duplicate endpoint address: %s", ep.Address))
		}
		addrs[ep.Address] = true

		if ep.Geo != nil {
			if ep.Geo.Lat < -90 || ep.Geo.Lat > 90 {
				errors = append(errors, fmt.Sprintf("endpoint[%d].geoloc.lat must be between -90 and 90", i))
			}
			if ep.Geo.Lon < -180 || ep.Geo.Lon > 180 {
				errors = append(errors, fmt.Sprintf("endpoint[%d].geoloc.lon must be between -180 and 180", i))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
