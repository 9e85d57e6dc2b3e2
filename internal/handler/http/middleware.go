package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/uptownstitch/storefront/pkg/httputil"
	"github.com/uptownstitch/storefront/pkg/logger"
	"github.com/uptownstitch/storefront/pkg/validator"
)

// SessionHeader carries the cart session id in both directions.
const SessionHeader = "X-Session-ID"

const sessionIDRules = "required,max=128,token"

// SessionID is middleware that reads the X-Session-ID header, issuing a new
// UUID when the client has none, and stores the effective id in the request
// context. The id is echoed back on every response so a client can adopt it.
// Malformed ids are rejected with 400.
func SessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := r.Header.Get(SessionHeader)
		if sid == "" {
			sid = uuid.NewString()
		} else if !validSessionID(sid) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:      "INVALID_SESSION_ID",
					Message:   "X-Session-ID must be 1-128 characters of letters, digits, '-' or '_'",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				},
			})
			return
		}

		w.Header().Set(SessionHeader, sid)
		next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), sid)))
	})
}

func validSessionID(s string) bool {
	return validator.Var(s, sessionIDRules) == nil
}

// sessionIDFromContext returns the id stored by SessionID.
func sessionIDFromContext(ctx context.Context) string {
	return logger.SessionIDFromContext(ctx)
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
