package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Authenticator resolves a card identifier to an access decision.  The door
// controller depends on this interface; tests substitute scripted fakes.
type Authenticator interface {
	Authenticate(ctx context.Context, idm string) AuthResult
}

// AuthClient asks the remote authorization host whether a card may open this
// room.  One POST per presentation, no retries, no caching: authorization
// lists can change between visits, so every presentation is a fresh round
// trip.  All failure modes collapse into a Decision; the caller never sees a
// raw error.
type AuthClient struct {
	url    string
	room   string
	client *http.Client
}

// NewAuthClient builds a client for the configured endpoint.  The timeout
// bounds the whole round trip so a user is never left waiting at the door.
func NewAuthClient(url, room string, timeout time.Duration) *AuthClient {
	return &AuthClient{
		url:    url,
		room:   room,
		client: &http.Client{Timeout: timeout},
	}
}

// authRequest is the wire format sent to the host.
type authRequest struct {
	IDm       string `json:"idm"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// The host replies with {"auth": "valid"|"invalid"|"unknown", "name": "..."}
// plus a per-room allowance flag named "allow_<room>".  The flag is looked up
// dynamically, so the response is decoded in two passes.
type authResponse struct {
	Auth string `json:"auth"`
	Name string `json:"name"`
}

// Authenticate maps the host's answer onto a Decision.  Anything ambiguous —
// transport failure, non-2xx status, a body that does not parse, a missing
// allowance flag — resolves to a fail-closed decision.
func (a *AuthClient) Authenticate(ctx context.Context, idm string) AuthResult {
	body, err := json.Marshal(authRequest{
		IDm:       idm,
		Room:      a.room,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return AuthResult{Decision: HostError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return AuthResult{Decision: HostError}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// Covers connection refused, DNS failure and the client timeout.
		return AuthResult{Decision: HostUnreachable}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AuthResult{Decision: HostError}
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return AuthResult{Decision: HostError}
	}
	var parsed authResponse
	if v, ok := raw["auth"]; ok {
		if err := json.Unmarshal(v, &parsed.Auth); err != nil {
			return AuthResult{Decision: HostError}
		}
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &parsed.Name)
	}

	switch parsed.Auth {
	case "valid":
		allowed := false
		if v, ok := raw[fmt.Sprintf("allow_%s", a.room)]; ok {
			if err := json.Unmarshal(v, &allowed); err != nil {
				return AuthResult{Decision: HostError}
			}
		}
		if allowed {
			return AuthResult{Decision: Granted, User: parsed.Name}
		}
		return AuthResult{Decision: Denied}
	case "unknown":
		return AuthResult{Decision: UnknownCard}
	case "invalid":
		return AuthResult{Decision: Denied}
	default:
		return AuthResult{Decision: HostError}
	}
}
