package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/repository"
	"auth-core-service/internal/security"
)

type EmailVerificationConfig struct {
	CodeLength    int
	AttemptBudget int
	ValidFor      time.Duration
	RetryWindow   time.Duration
}

// EmailVerificationService runs the three-step email ownership proof:
// Start issues a code, Complete checks it, ValidateVerified gates
// registration on a completed and still-fresh record.
type EmailVerificationService struct {
	repo   repository.EmailVerificationRepository
	sender EmailCodeSender
	cfg    EmailVerificationConfig
	logger *slog.Logger
}

func NewEmailVerificationService(repo repository.EmailVerificationRepository, sender EmailCodeSender, cfg EmailVerificationConfig, logger *slog.Logger) *EmailVerificationService {
	return &EmailVerificationService{
		repo:   repo,
		sender: sender,
		cfg:    cfg,
		logger: logger,
	}
}

// Start generates and dispatches a verification code and returns the opaque
// key the client uses for Complete. Dispatch happens before the insert and
// holds no lock, so a slow mail transport cannot stall the table.
func (s *EmailVerificationService) Start(ctx context.Context, email string) (string, error) {
	available, err := s.repo.ResendAvailable(email, s.cfg.RetryWindow)
	if err != nil {
		return "", err
	}
	if !available {
		return "", ErrVerificationIntervalNotPassed
	}

	code, err := security.NumericCode(s.cfg.CodeLength)
	if err != nil {
		return "", err
	}
	if err := s.sender.SendCode(ctx, email, code); err != nil {
		s.logger.Error("email verification code delivery failed", "email", email, "error", err)
		return "", ErrOTPSendFailed
	}

	v := &domain.EmailVerification{
		Key:          uuid.NewString(),
		Email:        email,
		Code:         code,
		AttemptsLeft: s.cfg.AttemptBudget,
		ValidUntil:   time.Now().UTC().Add(s.cfg.ValidFor),
	}
	if err := s.repo.Create(v); err != nil {
		return "", err
	}
	return v.Key, nil
}

// Complete checks a submitted code against the record behind key. A wrong
// code spends one attempt and that spend commits even though the call
// returns an error.
func (s *EmailVerificationService) Complete(ctx context.Context, key, code string) error {
	var outcome error
	err := s.repo.Transaction(func(tx repository.EmailVerificationRepository) error {
		v, err := tx.GetByKey(key, true)
		if err != nil {
			return err
		}
		if v.Verified {
			return nil
		}
		if v.AttemptsLeft <= 0 {
			outcome = ErrVerificationAttemptsExhausted
			return nil
		}
		if time.Now().UTC().After(v.ValidUntil) {
			outcome = ErrVerificationExpired
			return nil
		}
		if v.Code != code {
			// Returning the mismatch from here would roll the decrement
			// back, handing out free attempts.
			if err := tx.RemoveAttempt(v.ID); err != nil {
				return err
			}
			outcome = ErrIncorrectVerificationCode
			return nil
		}
		_, err = tx.MarkVerified(v.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return ErrVerificationNotFound
		}
		return err
	}
	return outcome
}

// ValidateVerified confirms the record behind key is verified and still
// inside its validity window. Read-only; used by registration.
func (s *EmailVerificationService) ValidateVerified(ctx context.Context, key string) (*domain.EmailVerification, error) {
	v, err := s.repo.GetByKey(key, false)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	if !v.Verified {
		return nil, ErrVerificationNotYetVerified
	}
	if time.Now().UTC().After(v.ValidUntil) {
		return nil, ErrVerificationExpired
	}
	return v, nil
}
