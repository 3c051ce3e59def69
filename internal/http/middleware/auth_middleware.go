package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/http/response"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/service"
)

type contextKey string

const SessionDataContextKey contextKey = "session_data"

// SessionResolver is the slice of the security service the middleware needs.
type SessionResolver interface {
	GetSessionData(ctx context.Context, accessToken string) (*domain.SessionData, error)
}

// SessionMiddleware authenticates a request by its bearer access token and
// puts the resolved SessionData on the request context.
func SessionMiddleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			data, err := resolver.GetSessionData(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrAccessTokenExpired):
					observability.RecordAccessTokenValidation(r.Context(), "expired")
					response.Error(w, r, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired", nil)
				case errors.Is(err, service.ErrIncorrectCredentials), errors.Is(err, service.ErrSessionNotFound):
					observability.RecordAccessTokenValidation(r.Context(), "invalid")
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				default:
					observability.RecordAccessTokenValidation(r.Context(), "error")
					response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
				}
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), SessionDataContextKey, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*domain.SessionData, bool) {
	data, ok := ctx.Value(SessionDataContextKey).(*domain.SessionData)
	return data, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
