package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIPAllowlist(t *testing.T) {
	private := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128"}

	tests := []struct {
		name   string
		cidrs  []string
		remote string
		want   int
	}{
		{"loopback", private, "127.0.0.1:41000", http.StatusOK},
		{"10/8", private, "10.1.2.3:41000", http.StatusOK},
		{"172.16/12", private, "172.16.5.5:41000", http.StatusOK},
		{"ipv6 loopback", private, "[::1]:41000", http.StatusOK},
		{"ipv4-mapped ipv6", private, "[::ffff:192.168.1.9]:41000", http.StatusOK},
		{"remote address without port", private, "127.0.0.1", http.StatusOK},
		{"public address", private, "8.8.8.8:41000", http.StatusForbidden},
		{"garbage remote address", private, "not-an-ip", http.StatusForbidden},
		{"invalid cidr is skipped", []string{"not-a-cidr", "127.0.0.0/8"}, "127.0.0.1:41000", http.StatusOK},
		{"no cidrs denies all", nil, "127.0.0.1:41000", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := IPAllowlist(tt.cidrs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", http.NoBody)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPAllowlist_DeniedBodyUsesErrorEnvelope(t *testing.T) {
	h := IPAllowlist([]string{"10.0.0.0/8"}, discardLogger())(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", http.NoBody)
	req.RemoteAddr = "8.8.8.8:1234"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
}

func TestRegisterPprof(t *testing.T) {
	tests := []struct {
		name   string
		cidrs  []string
		path   string
		remote string
		want   int
	}{
		{"index", []string{"127.0.0.0/8"}, "/debug/pprof/", "127.0.0.1:1234", http.StatusOK},
		{"cmdline", []string{"127.0.0.0/8"}, "/debug/pprof/cmdline", "127.0.0.1:1234", http.StatusOK},
		{"heap via index", []string{"127.0.0.0/8"}, "/debug/pprof/heap", "127.0.0.1:1234", http.StatusOK},
		{"outside allowlist", []string{"10.0.0.0/8"}, "/debug/pprof/", "192.168.1.1:1234", http.StatusForbidden},
		{"not mounted without cidrs", nil, "/debug/pprof/", "127.0.0.1:1234", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			RegisterPprof(r, tt.cidrs, discardLogger())
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
