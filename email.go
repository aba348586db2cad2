package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// EmailAnnouncer delivers alarm emissions as Brevo transactional emails.
// Repeats are additionally cooled down so a long outage does not flood the
// inbox; first alarms and all-clears always go out (subject to the hourly
// rate limit).
type EmailAnnouncer struct {
	client   *brevo.APIClient
	from     string
	to       string
	limit    int
	cooldown time.Duration

	mu         sync.Mutex
	sentTimes  []time.Time
	lastRepeat time.Time
}

// NewEmailAnnouncer builds the Brevo client from the email configuration.
func NewEmailAnnouncer(cfg EmailConfig) *EmailAnnouncer {
	apiCfg := brevo.NewConfiguration()
	apiCfg.AddDefaultHeader("api-key", cfg.APIKey)

	return &EmailAnnouncer{
		client:   brevo.NewAPIClient(apiCfg),
		from:     cfg.From,
		to:       cfg.To,
		limit:    cfg.RateLimitPerHour,
		cooldown: time.Duration(cfg.CooldownMinutes) * time.Minute,
	}
}

// allow applies the hourly rate limit and, for repeats, the cooldown.
func (ea *EmailAnnouncer) allow(kind AnnouncementKind) bool {
	ea.mu.Lock()
	defer ea.mu.Unlock()

	now := time.Now()

	if kind == AnnounceRepeat {
		if !ea.lastRepeat.IsZero() && now.Sub(ea.lastRepeat) < ea.cooldown {
			return false
		}
	}

	cutoff := now.Add(-time.Hour)
	recent := ea.sentTimes[:0]
	for _, t := range ea.sentTimes {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	ea.sentTimes = recent

	if len(ea.sentTimes) >= ea.limit {
		log.Printf("⚠️  Email rate limit reached (%d/hour)", ea.limit)
		return false
	}

	ea.sentTimes = append(ea.sentTimes, now)
	if kind == AnnounceRepeat {
		ea.lastRepeat = now
	}
	return true
}

// Announce sends one email per emission, subject keyed by kind.
func (ea *EmailAnnouncer) Announce(kind AnnouncementKind, message string) error {
	if !ea.allow(kind) {
		return nil
	}

	var subject string
	switch kind {
	case AnnounceAlarm:
		subject = "🔴 Net Sentry ALARM"
	case AnnounceRepeat:
		subject = "🔁 Net Sentry alarm continues"
	case AnnounceAllClear:
		subject = "🟢 Net Sentry all clear"
	}

	body := fmt.Sprintf("%s\n\nTime: %s\n", message, time.Now().Format("2006-01-02 15:04:05"))

	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  "Net Sentry",
			Email: ea.from,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: ea.to},
		},
		Subject:     subject,
		HtmlContent: fmt.Sprintf("<pre>%s</pre>", body),
		TextContent: body,
	}

	_, _, err := ea.client.TransactionalEmailsApi.SendTransacEmail(context.Background(), email)
	if err != nil {
		return fmt.Errorf("sending email via Brevo: %v", err)
	}

	log.Printf("📧 Email announcement sent (%s)", kind)
	return nil
}
