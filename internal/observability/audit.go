package observability

import (
	"log/slog"
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit emits one structured line per security-relevant event: logins,
// registrations, token rotations, logouts. The request id ties the event
// to the access-log entry for the same request; the client host supports
// after-the-fact abuse review.
func Audit(r *http.Request, event string, attrs ...any) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	base := []any{
		"event", event,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"route", r.Method + " " + r.URL.Path,
		"client", host,
	}
	slog.InfoContext(r.Context(), "auth audit", append(base, attrs...)...)
}
