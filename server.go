package main

// Local status API for operators.  It exposes the door state, the tail of the
// event log and the explicit reset path for the error state.  Protected by
// basic auth against a bcrypt hash from the config; disabled entirely when no
// listen address is configured.

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// StatusServer serves the operator API.
type StatusServer struct {
	ctl    *Controller
	events *EventLogger
	logger *log.Logger
	cfg    ServerConfig
	srv    *http.Server
}

// NewStatusServer wires the API to the controller and event log.
func NewStatusServer(cfg ServerConfig, ctl *Controller, events *EventLogger, logger *log.Logger) *StatusServer {
	s := &StatusServer{ctl: ctl, events: events, logger: logger, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/api/reset", s.withAuth(s.handleReset))
	mux.HandleFunc("/api/logs", s.withAuth(s.handleLogs))

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start blocks serving the API until Shutdown is called.
func (s *StatusServer) Start() error {
	s.logger.Printf("status API listening on %s", s.cfg.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// withAuth enforces basic auth on every endpoint.  The password is compared
// against the configured bcrypt hash, so the config file never holds a
// plaintext credential.
func (s *StatusServer) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.Username ||
			bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="smartdoor"`)
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := struct {
		State         string `json:"state"`
		Locked        bool   `json:"locked"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}{
		State:         s.ctl.State().String(),
		Locked:        s.ctl.Locked(),
		UptimeSeconds: int64(s.ctl.Uptime().Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleReset clears the error state.  Responds 409 when the controller is
// not faulted, so an operator script can tell a no-op from a real clear.
func (s *StatusServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ctl.Reset("operator") {
		http.Error(w, "not in error state", http.StatusConflict)
		return
	}
	s.logger.Printf("error state cleared via status API")
	w.WriteHeader(http.StatusNoContent)
}

// handleLogs returns the event log tail.  Accepts an optional query
// parameter `lines=n` to limit the number of lines returned.
func (s *StatusServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 200
	if v := r.URL.Query().Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	lines, err := s.events.Tail(limit)
	if err != nil {
		http.Error(w, "log not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lines)
}
