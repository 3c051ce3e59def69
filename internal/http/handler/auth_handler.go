package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/http/middleware"
	"auth-core-service/internal/http/response"
	"auth-core-service/internal/observability"
	"auth-core-service/internal/service"
)

// AuthHandler exposes the session-based authentication surface.
type AuthHandler struct {
	security      *service.SecurityService
	otp           *service.OTPService
	verifications *service.EmailVerificationService
	logger        *slog.Logger
}

func NewAuthHandler(security *service.SecurityService, otp *service.OTPService, verifications *service.EmailVerificationService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		security:      security,
		otp:           otp,
		verifications: verifications,
		logger:        logger,
	}
}

type presignRequest struct {
	Platform domain.Platform `json:"platform"`
	GroupID  int             `json:"group_id"`
}

func (h *AuthHandler) Presign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Platform.Valid() {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PLATFORM", "unknown platform", nil)
		return
	}
	bundle, err := h.security.CreatePresignSession(r.Context(), req.Platform, req.GroupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.presign", slog.String("session_uuid", bundle.SessionUUID))
	response.JSON(w, r, http.StatusOK, bundle)
}

type refreshRequest struct {
	SessionUUID  string `json:"session_uuid"`
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	bundle, err := h.security.Refresh(r.Context(), req.SessionUUID, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, bundle)
}

type passwordLoginRequest struct {
	Platform domain.Platform `json:"platform"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	GroupID  int             `json:"group_id"`
}

func (h *AuthHandler) LoginByPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Platform.Valid() {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PLATFORM", "unknown platform", nil)
		return
	}
	bundle, err := h.security.LoginByPassword(r.Context(), req.Platform, req.Email, req.Password, req.GroupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login.password", slog.String("session_uuid", bundle.SessionUUID))
	response.JSON(w, r, http.StatusOK, bundle)
}

type otpLoginRequest struct {
	Platform domain.Platform `json:"platform"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	GroupID  int             `json:"group_id"`
}

func (h *AuthHandler) LoginByOTP(w http.ResponseWriter, r *http.Request) {
	var req otpLoginRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Platform.Valid() {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PLATFORM", "unknown platform", nil)
		return
	}
	bundle, err := h.security.LoginByOTP(r.Context(), req.Platform, req.Username, req.Password, req.GroupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login.otp", slog.String("session_uuid", bundle.SessionUUID))
	response.JSON(w, r, http.StatusOK, bundle)
}

type otpSendRequest struct {
	Username string                 `json:"username"`
	GroupID  int                    `json:"group_id"`
	Method   service.DeliveryMethod `json:"method"`
}

func (h *AuthHandler) SendLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.otp.SendLoginOTP(r.Context(), req.Username, req.GroupID, req.Method); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, nil)
}

func (h *AuthHandler) SendRegisterOTP(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.otp.SendRegisterOTP(r.Context(), req.Username, req.GroupID, req.Method); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, nil)
}

type registerByOTPRequest struct {
	Platform domain.Platform `json:"platform"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	GroupID  int             `json:"group_id"`
}

func (h *AuthHandler) RegisterByOTP(w http.ResponseWriter, r *http.Request) {
	var req registerByOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Platform.Valid() {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PLATFORM", "unknown platform", nil)
		return
	}
	bundle, err := h.security.RegisterByOTP(r.Context(), req.Platform, req.Username, req.Password, req.GroupID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.register.otp", slog.String("session_uuid", bundle.SessionUUID))
	response.JSON(w, r, http.StatusOK, bundle)
}

type startVerificationRequest struct {
	Email string `json:"email"`
}

type startVerificationResponse struct {
	Key string `json:"key"`
}

func (h *AuthHandler) StartEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req startVerificationRequest
	if !decode(w, r, &req) {
		return
	}
	key, err := h.verifications.Start(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, startVerificationResponse{Key: key})
}

type completeVerificationRequest struct {
	Key  string `json:"key"`
	Code string `json:"code"`
}

func (h *AuthHandler) CompleteEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req completeVerificationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.verifications.Complete(r.Context(), req.Key, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, nil)
}

type registerRequest struct {
	Password             string `json:"password"`
	EmailVerificationKey string `json:"email_verification_key"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	data, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	bundle, err := h.security.RegisterAccount(r.Context(), data, req.Password, req.EmailVerificationKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.register", slog.String("session_uuid", bundle.SessionUUID))
	response.JSON(w, r, http.StatusOK, bundle)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	data, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	if err := h.security.RevokeSession(r.Context(), data.SessionUUID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout", slog.String("session_uuid", data.SessionUUID))
	response.JSON(w, r, http.StatusOK, nil)
}

type fcmTokenRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) SetFCMToken(w http.ResponseWriter, r *http.Request) {
	data, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	var req fcmTokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.security.SetFCMToken(r.Context(), data.SessionUUID, req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, nil)
}

// Session returns the caller's resolved SessionData.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	data, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, data)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return false
	}
	return true
}
