package service

import (
	"errors"
	"fmt"
	"time"
)

// Expected, user-facing outcomes. These are never logged as failures;
// anything outside this set propagates as an opaque internal error.
var (
	// ErrIncorrectCredentials deliberately collapses unknown identity,
	// wrong password, undecodable token and deactivated account into one
	// answer so callers cannot enumerate accounts.
	ErrIncorrectCredentials = errors.New("incorrect credentials")

	// ErrAccessTokenExpired signals "refresh", not "re-login".
	ErrAccessTokenExpired = errors.New("access token expired")

	// ErrOTPExhausted means no eligible one-time password exists: the
	// check budget is spent or every code expired. A new code is needed.
	ErrOTPExhausted = errors.New("one-time password checks exhausted")

	// ErrOTPMismatch means an eligible code existed but differed; the
	// attempt was already spent by the check.
	ErrOTPMismatch = errors.New("incorrect one-time password")

	ErrOTPSendFailed = errors.New("one-time password send failed")

	ErrResendIntervalNotPassed = errors.New("resend interval not passed")

	// ErrWrongRefreshToken covers forgery and replay of a rotated token
	// alike; the two are intentionally indistinguishable.
	ErrWrongRefreshToken = errors.New("wrong refresh token")

	ErrUsernameTaken       = errors.New("username is already taken")
	ErrEmailAlreadyClaimed = errors.New("email is already claimed")

	ErrVerificationNotFound          = errors.New("email verification not found")
	ErrVerificationIntervalNotPassed = errors.New("email verification resend interval not passed")
	ErrVerificationAttemptsExhausted = errors.New("email verification attempts exhausted")
	ErrVerificationExpired           = errors.New("email verification expired")
	ErrIncorrectVerificationCode     = errors.New("incorrect email verification code")
	ErrVerificationNotYetVerified    = errors.New("email verification not yet completed")

	ErrSessionNotFound = errors.New("auth session not found")
)

// ResendIntervalError reports how long the caller must wait before the
// next OTP send. It matches ErrResendIntervalNotPassed under errors.Is.
type ResendIntervalError struct {
	Timeleft time.Duration
}

func (e *ResendIntervalError) Error() string {
	return fmt.Sprintf("resend interval not passed, %d seconds left", e.TimeleftSeconds())
}

func (e *ResendIntervalError) Is(target error) bool {
	return target == ErrResendIntervalNotPassed
}

func (e *ResendIntervalError) TimeleftSeconds() int {
	return int(e.Timeleft.Round(time.Second) / time.Second)
}
