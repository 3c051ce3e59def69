package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"auth-core-service/internal/domain"
)

func TestEmailVerificationStartSendsCode(t *testing.T) {
	f := newFixture(t, nil)

	key, err := f.verifications.Start(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if key == "" {
		t.Fatalf("expected a verification key")
	}
	code := f.emailSender.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	var v domain.EmailVerification
	if err := f.primaryDB.Where("key = ?", key).First(&v).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if v.Code != code || v.AttemptsLeft != 3 || v.Verified {
		t.Fatalf("unexpected stored record %+v", v)
	}
}

func TestEmailVerificationStartThrottled(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.verifications.Start(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := f.verifications.Start(context.Background(), "new@example.com")
	if !errors.Is(err, ErrVerificationIntervalNotPassed) {
		t.Fatalf("expected interval error, got %v", err)
	}
	if len(f.emailSender.sent) != 1 {
		t.Fatalf("throttled start must not send a second code")
	}
}

func TestEmailVerificationDeliveryFailureSurfaces(t *testing.T) {
	f := newFixture(t, nil)
	f.emailSender.fail = errors.New("smtp down")

	_, err := f.verifications.Start(context.Background(), "new@example.com")
	if !errors.Is(err, ErrOTPSendFailed) {
		t.Fatalf("expected send failure, got %v", err)
	}
	var count int64
	f.primaryDB.Model(&domain.EmailVerification{}).Count(&count)
	if count != 0 {
		t.Fatalf("undelivered code must not be persisted")
	}
}

func TestEmailVerificationCompleteSpendsBudget(t *testing.T) {
	f := newFixture(t, nil)

	key, err := f.verifications.Start(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		err := f.verifications.Complete(context.Background(), key, "000000")
		if !errors.Is(err, ErrIncorrectVerificationCode) {
			t.Fatalf("attempt %d: expected mismatch, got %v", i+1, err)
		}
	}

	// Budget spent; even the right code is rejected now.
	err = f.verifications.Complete(context.Background(), key, f.emailSender.lastCode(t))
	if !errors.Is(err, ErrVerificationAttemptsExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
}

func TestEmailVerificationMismatchDecrementPersists(t *testing.T) {
	f := newFixture(t, nil)

	key, err := f.verifications.Start(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.verifications.Complete(context.Background(), key, "000000"); !errors.Is(err, ErrIncorrectVerificationCode) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	var v domain.EmailVerification
	if err := f.primaryDB.Where("key = ?", key).First(&v).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if v.AttemptsLeft != 2 {
		t.Fatalf("mismatch must commit the decrement, attempts_left = %d", v.AttemptsLeft)
	}
}

func TestEmailVerificationCompleteAndValidate(t *testing.T) {
	f := newFixture(t, nil)

	key, err := f.verifications.Start(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Not yet verified.
	if _, err := f.verifications.ValidateVerified(context.Background(), key); !errors.Is(err, ErrVerificationNotYetVerified) {
		t.Fatalf("expected not-yet-verified, got %v", err)
	}

	if err := f.verifications.Complete(context.Background(), key, f.emailSender.lastCode(t)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Completing again is a no-op, not an error.
	if err := f.verifications.Complete(context.Background(), key, "whatever"); err != nil {
		t.Fatalf("repeat complete on verified record: %v", err)
	}

	v, err := f.verifications.ValidateVerified(context.Background(), key)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Email != "new@example.com" {
		t.Fatalf("unexpected email %q", v.Email)
	}
}

func TestEmailVerificationExpiry(t *testing.T) {
	f := newFixture(t, nil)

	key, err := f.verifications.Start(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	code := f.emailSender.lastCode(t)
	if err := f.verifications.Complete(context.Background(), key, code); err != nil {
		t.Fatalf("complete: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := f.primaryDB.Model(&domain.EmailVerification{}).
		Where("key = ?", key).
		UpdateColumn("valid_until", past).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	// Verified but past its window: registration must reject it.
	if _, err := f.verifications.ValidateVerified(context.Background(), key); !errors.Is(err, ErrVerificationExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestEmailVerificationUnknownKey(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.verifications.Complete(context.Background(), "missing", "123456"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.verifications.ValidateVerified(context.Background(), "missing"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
