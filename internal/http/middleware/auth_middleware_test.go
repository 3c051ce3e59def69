package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/service"
)

type stubSessionResolver struct {
	data *domain.SessionData
	err  error
}

func (s *stubSessionResolver) GetSessionData(ctx context.Context, accessToken string) (*domain.SessionData, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func runSessionMiddleware(t *testing.T, resolver SessionResolver, authHeader string) (*httptest.ResponseRecorder, *domain.SessionData) {
	t.Helper()
	var captured *domain.SessionData
	handler := SessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestSessionMiddlewarePutsDataOnContext(t *testing.T) {
	data := &domain.SessionData{SessionUUID: "s-1", UserID: 7, Platform: domain.PlatformWeb}
	rec, captured := runSessionMiddleware(t, &stubSessionResolver{data: data}, "Bearer some-token")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured == nil || captured.SessionUUID != "s-1" {
		t.Fatalf("session data missing from context: %+v", captured)
	}
}

func TestSessionMiddlewareMissingToken(t *testing.T) {
	rec, _ := runSessionMiddleware(t, &stubSessionResolver{}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddlewareExpiredToken(t *testing.T) {
	rec, _ := runSessionMiddleware(t, &stubSessionResolver{err: service.ErrAccessTokenExpired}, "Bearer stale")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "TOKEN_EXPIRED") {
		t.Fatalf("expected TOKEN_EXPIRED code in body: %s", body)
	}
}

func TestSessionMiddlewareInvalidToken(t *testing.T) {
	rec, _ := runSessionMiddleware(t, &stubSessionResolver{err: service.ErrIncorrectCredentials}, "Bearer junk")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "UNAUTHORIZED") {
		t.Fatalf("expected UNAUTHORIZED code in body: %s", body)
	}
}
