package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStatusServer(t *testing.T, ctl *Controller, events *EventLogger) *httptest.Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := ServerConfig{Addr: ":0", Username: "admin", PasswordHash: string(hash)}
	s := NewStatusServer(cfg, ctl, events, log.New(os.Stderr, "test ", 0))
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url string, authenticated bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if authenticated {
		req.SetBasicAuth("admin", "secret")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatusServerRequiresAuth(t *testing.T) {
	auth := &fakeAuth{}
	ctl, _, _ := newTestController(t, testConfig(), auth)
	events := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	ts := newTestStatusServer(t, ctl, events)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/status", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.SetBasicAuth("admin", "wrong")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestStatusServerReportsState(t *testing.T) {
	auth := &fakeAuth{}
	ctl, _, _ := newTestController(t, testConfig(), auth)
	events := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	ts := newTestStatusServer(t, ctl, events)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/status", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		State  string `json:"state"`
		Locked bool   `json:"locked"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "idle", body.State)
	assert.True(t, body.Locked)
}

func TestStatusServerResetClearsFault(t *testing.T) {
	cfg := testConfig()
	cfg.Door.FailThreshold = 1
	auth := &fakeAuth{results: []AuthResult{{Decision: HostUnreachable}}}
	ctl, _, _ := newTestController(t, cfg, auth)
	events := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	ts := newTestStatusServer(t, ctl, events)

	// A reset of a healthy controller is a conflict, not a silent no-op.
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/reset", true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	ctl.SubmitCard("A1B2")
	require.Equal(t, StateError, ctl.State())

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/reset", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, StateIdle, ctl.State())
	ctl.Wait()
}

func TestStatusServerLogsTail(t *testing.T) {
	auth := &fakeAuth{}
	ctl, _, _ := newTestController(t, testConfig(), auth)
	events := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	events.Log("unlocked by alice")
	events.Log("access denied for FFFF")
	ts := newTestStatusServer(t, ctl, events)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/logs?lines=1", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lines))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "access denied for FFFF")
}

func TestStatusServerMethodChecks(t *testing.T) {
	auth := &fakeAuth{}
	ctl, _, _ := newTestController(t, testConfig(), auth)
	events := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	ts := newTestStatusServer(t, ctl, events)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/status", true)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/reset", true)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
