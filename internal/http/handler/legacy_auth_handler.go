package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"auth-core-service/internal/http/response"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/security"
	"auth-core-service/internal/service"
)

// LegacyAuthHandler serves the pre-session token endpoints.
type LegacyAuthHandler struct {
	legacy *service.LegacyAuthService
	jwt    *security.JWTManager
	logger *slog.Logger
}

func NewLegacyAuthHandler(legacy *service.LegacyAuthService, jwtManager *security.JWTManager, logger *slog.Logger) *LegacyAuthHandler {
	return &LegacyAuthHandler{legacy: legacy, jwt: jwtManager, logger: logger}
}

type legacyPasswordLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	GroupID  int    `json:"group_id"`
}

func (h *LegacyAuthHandler) LoginByPassword(w http.ResponseWriter, r *http.Request) {
	var req legacyPasswordLoginRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.legacy.LoginByPassword(r.Context(), req.Username, req.Password, req.GroupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.legacy.login.password")
	response.JSON(w, r, http.StatusOK, pair)
}

type legacyOTPLoginRequest struct {
	Username    string `json:"username"`
	OTPPassword string `json:"otp_password"`
	GroupID     int    `json:"group_id"`
}

func (h *LegacyAuthHandler) LoginByOTP(w http.ResponseWriter, r *http.Request) {
	var req legacyOTPLoginRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.legacy.LoginByOTP(r.Context(), req.Username, req.OTPPassword, req.GroupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.legacy.login.otp")
	response.JSON(w, r, http.StatusOK, pair)
}

type legacyRefreshRequest struct {
	UserID       uint   `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

func (h *LegacyAuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req legacyRefreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.legacy.Refresh(r.Context(), req.UserID, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, pair)
}

// Logout identifies the caller by the legacy bearer token.
func (h *LegacyAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return
	}
	claims, err := h.jwt.ParseLegacyToken(strings.TrimSpace(auth[7:]))
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			writeServiceError(w, r, service.ErrAccessTokenExpired)
			return
		}
		writeServiceError(w, r, service.ErrIncorrectCredentials)
		return
	}
	if err := h.legacy.Logout(r.Context(), claims.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.legacy.logout", slog.Uint64("user_id", uint64(claims.UserID)))
	response.JSON(w, r, http.StatusOK, nil)
}
