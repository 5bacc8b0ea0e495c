package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierPostsToAllURLs(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		hits[r.URL.Path] = payload
		mu.Unlock()
	}))
	defer srv.Close()

	n := NewWebhookNotifier(map[string]string{
		"unlock_event": srv.URL + "/one",
		"audit":        srv.URL + "/two",
	}, time.Second, 600)

	ev := NotificationEvent{
		Time:   time.Date(2026, 8, 25, 12, 30, 0, 0, time.UTC),
		Actor:  "alice",
		Action: ActionUnlock,
	}
	require.NoError(t, n.Notify(context.Background(), ev))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, hits, 2)
	for _, payload := range hits {
		assert.Equal(t, "2026/08/25 12:30:00", payload["value1"])
		assert.Equal(t, "alice", payload["value2"])
		assert.Equal(t, ActionUnlock, payload["value3"])
	}
}

func TestWebhookNotifierReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(map[string]string{"door": srv.URL}, time.Second, 600)
	err := n.Notify(context.Background(), NotificationEvent{Time: time.Now(), Actor: "x", Action: ActionDenied})
	assert.Error(t, err)
}

func TestLogNotifierWritesEventTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	n := LogNotifier{events: NewEventLogger(path)}

	ev := NotificationEvent{Time: time.Now(), Actor: "A1B2", Action: ActionDenied}
	require.NoError(t, n.Notify(context.Background(), ev))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DENIED by A1B2")
}

func TestInitNotifiersComposition(t *testing.T) {
	events := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))

	cfg := testConfig()
	handlers := initNotifiers(cfg, events)
	require.Len(t, handlers, 1)
	assert.Equal(t, "log", handlers[0].Name())

	cfg.IFTTTURLs = map[string]string{"door": "https://example.com/hook"}
	cfg.Notify.Email = EmailConfig{SMTPServer: "smtp.example.com", SMTPPort: 587, To: "ops@example.com"}
	handlers = initNotifiers(cfg, events)
	require.Len(t, handlers, 3)
	assert.Equal(t, "webhook", handlers[1].Name())
	assert.Equal(t, "email", handlers[2].Name())
}

func TestEventLoggerTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	el := NewEventLogger(path)
	el.Log("first")
	el.Log("second")
	el.Log("third")

	lines, err := el.Tail(2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "second")
	assert.Contains(t, lines[1], "third")
}
