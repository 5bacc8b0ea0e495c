package main

// Pluggable notification handlers invoked after each resolved access attempt.
// Delivery is strictly best-effort: failures are logged and discarded, never
// retried, and never surfaced to the door controller.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"golang.org/x/time/rate"
)

// Notifier delivers one NotificationEvent over some channel.  Implementations
// may block on the network; the dispatcher runs them off the controller's
// goroutine.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev NotificationEvent) error
}

// LogNotifier records the event in the event log.  It is always installed so
// every resolved attempt leaves a trace even with no webhooks configured.
type LogNotifier struct {
	events *EventLogger
}

func (LogNotifier) Name() string { return "log" }

func (n LogNotifier) Notify(_ context.Context, ev NotificationEvent) error {
	n.events.Log("%s by %s", ev.Action, ev.Actor)
	return nil
}

// WebhookNotifier posts the event to every configured IFTTT URL using the
// maker-webhook payload: value1=timestamp, value2=actor, value3=action.
// A rate limiter caps outbound posts so a burst of door events cannot hammer
// the endpoint.
type WebhookNotifier struct {
	urls    map[string]string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookNotifier builds a notifier for the given event-name to URL map.
func NewWebhookNotifier(urls map[string]string, timeout time.Duration, perMinute int) *WebhookNotifier {
	return &WebhookNotifier{
		urls:    urls,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (*WebhookNotifier) Name() string { return "webhook" }

// Notify posts to all URLs.  The first failure aborts the remaining posts for
// this event; the event is then dropped, per the best-effort policy.
func (n *WebhookNotifier) Notify(ctx context.Context, ev NotificationEvent) error {
	payload, err := json.Marshal(map[string]string{
		"value1": ev.Time.Format("2006/01/02 15:04:05"),
		"value2": ev.Actor,
		"value3": ev.Action,
	})
	if err != nil {
		return err
	}
	for event, url := range n.urls {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", event, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("post %s: status %d", event, resp.StatusCode)
		}
	}
	return nil
}

// EmailNotifier sends a plaintext mail per event via an SMTP server.  All
// values come from the [notify.email] config table.
type EmailNotifier struct {
	cfg EmailConfig
}

func (EmailNotifier) Name() string { return "email" }

func (n EmailNotifier) Notify(_ context.Context, ev NotificationEvent) error {
	subject := n.cfg.Subject
	if subject == "" {
		subject = "smartdoor event"
	}
	body := fmt.Sprintf("%s: %s by %s", ev.Time.Format(time.RFC3339), ev.Action, ev.Actor)
	// RFC 5322 requires CRLF line endings.
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", n.cfg.To, subject, body)
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPServer, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPServer)
	return smtp.SendMail(addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg))
}

// initNotifiers constructs the notifier set from configuration.  The log
// notifier is always present; webhook and email are added when configured.
func initNotifiers(cfg Config, events *EventLogger) []Notifier {
	handlers := []Notifier{LogNotifier{events: events}}
	if len(cfg.IFTTTURLs) > 0 {
		handlers = append(handlers, NewWebhookNotifier(
			cfg.IFTTTURLs,
			time.Duration(cfg.Notify.TimeoutSeconds)*time.Second,
			cfg.Notify.RatePerMinute,
		))
	}
	if cfg.Notify.Email.SMTPServer != "" && cfg.Notify.Email.To != "" {
		handlers = append(handlers, EmailNotifier{cfg: cfg.Notify.Email})
	}
	return handlers
}
