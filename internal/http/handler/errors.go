package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"auth-core-service/internal/http/response"
	"auth-core-service/internal/service"
)

// writeServiceError maps the service error taxonomy onto stable HTTP codes.
// Expected outcomes go out as-is; anything unrecognized is an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var resend *service.ResendIntervalError
	if errors.As(err, &resend) {
		response.Error(w, r, http.StatusTooManyRequests, "RESEND_INTERVAL_NOT_PASSED", "resend interval not passed",
			map[string]int{"timeleft_seconds": resend.TimeleftSeconds()})
		return
	}

	switch {
	case errors.Is(err, service.ErrIncorrectCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INCORRECT_CREDENTIALS", "incorrect credentials", nil)
	case errors.Is(err, service.ErrAccessTokenExpired):
		response.Error(w, r, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired", nil)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "session not found", nil)
	case errors.Is(err, service.ErrWrongRefreshToken):
		response.Error(w, r, http.StatusUnauthorized, "WRONG_REFRESH_TOKEN", "wrong refresh token", nil)
	case errors.Is(err, service.ErrOTPExhausted):
		response.Error(w, r, http.StatusForbidden, "OTP_EXHAUSTED", "one-time password checks exhausted", nil)
	case errors.Is(err, service.ErrOTPMismatch):
		response.Error(w, r, http.StatusUnauthorized, "OTP_MISMATCH", "incorrect one-time password", nil)
	case errors.Is(err, service.ErrOTPSendFailed):
		response.Error(w, r, http.StatusBadGateway, "OTP_SEND_FAILED", "one-time password delivery failed", nil)
	case errors.Is(err, service.ErrUsernameTaken):
		response.Error(w, r, http.StatusConflict, "USERNAME_TAKEN", "username is already taken", nil)
	case errors.Is(err, service.ErrEmailAlreadyClaimed):
		response.Error(w, r, http.StatusConflict, "EMAIL_ALREADY_CLAIMED", "email is already claimed", nil)
	case errors.Is(err, service.ErrVerificationNotFound):
		response.Error(w, r, http.StatusNotFound, "VERIFICATION_NOT_FOUND", "email verification not found", nil)
	case errors.Is(err, service.ErrVerificationIntervalNotPassed):
		response.Error(w, r, http.StatusTooManyRequests, "VERIFICATION_INTERVAL_NOT_PASSED", "verification resend interval not passed", nil)
	case errors.Is(err, service.ErrVerificationAttemptsExhausted):
		response.Error(w, r, http.StatusForbidden, "VERIFICATION_ATTEMPTS_EXHAUSTED", "verification attempts exhausted", nil)
	case errors.Is(err, service.ErrVerificationExpired):
		response.Error(w, r, http.StatusGone, "VERIFICATION_EXPIRED", "email verification expired", nil)
	case errors.Is(err, service.ErrIncorrectVerificationCode):
		response.Error(w, r, http.StatusUnauthorized, "INCORRECT_VERIFICATION_CODE", "incorrect verification code", nil)
	case errors.Is(err, service.ErrVerificationNotYetVerified):
		response.Error(w, r, http.StatusForbidden, "VERIFICATION_NOT_COMPLETED", "email verification not completed", nil)
	default:
		slog.Error("unhandled service error", "error", err, "path", r.URL.Path)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
