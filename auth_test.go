package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthClientDecisionMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		want     Decision
		wantUser string
	}{
		{
			name:     "authorized",
			status:   http.StatusOK,
			body:     `{"auth": "valid", "allow_423": true, "name": "alice"}`,
			want:     Granted,
			wantUser: "alice",
		},
		{
			name:   "valid card but room not allowed",
			status: http.StatusOK,
			body:   `{"auth": "valid", "allow_423": false, "name": "alice"}`,
			want:   Denied,
		},
		{
			name:   "valid card with allowance flag missing",
			status: http.StatusOK,
			body:   `{"auth": "valid", "name": "alice"}`,
			want:   Denied,
		},
		{
			name:   "card not recognised",
			status: http.StatusOK,
			body:   `{"auth": "unknown"}`,
			want:   UnknownCard,
		},
		{
			name:   "card revoked",
			status: http.StatusOK,
			body:   `{"auth": "invalid"}`,
			want:   Denied,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error": "boom"}`,
			want:   HostError,
		},
		{
			name:   "unparseable body",
			status: http.StatusOK,
			body:   `not json at all`,
			want:   HostError,
		},
		{
			name:   "unexpected auth value",
			status: http.StatusOK,
			body:   `{"auth": "maybe"}`,
			want:   HostError,
		},
		{
			name:   "allowance flag of wrong type",
			status: http.StatusOK,
			body:   `{"auth": "valid", "allow_423": "yes"}`,
			want:   HostError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewAuthClient(srv.URL, "423", time.Second)
			res := client.Authenticate(context.Background(), "013BDD2FEE1FC80D")
			assert.Equal(t, tc.want, res.Decision)
			assert.Equal(t, tc.wantUser, res.User)
		})
	}
}

func TestAuthClientRequestBody(t *testing.T) {
	var got authRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"auth": "unknown"}`))
	}))
	defer srv.Close()

	client := NewAuthClient(srv.URL, "423", time.Second)
	client.Authenticate(context.Background(), "A1B2")

	assert.Equal(t, "A1B2", got.IDm)
	assert.Equal(t, "423", got.Room)
	_, err := time.Parse(time.RFC3339, got.Timestamp)
	assert.NoError(t, err)
}

func TestAuthClientTimeoutResolvesToUnreachable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	client := NewAuthClient(srv.URL, "423", 50*time.Millisecond)
	start := time.Now()
	res := client.Authenticate(context.Background(), "A1B2")

	assert.Equal(t, HostUnreachable, res.Decision)
	// The round trip must resolve shortly after the timeout, never hang.
	assert.Less(t, time.Since(start), time.Second)
}

func TestAuthClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens on the URL anymore

	client := NewAuthClient(srv.URL, "423", time.Second)
	res := client.Authenticate(context.Background(), "A1B2")
	assert.Equal(t, HostUnreachable, res.Decision)
}
