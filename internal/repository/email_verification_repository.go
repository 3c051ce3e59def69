package repository

import (
	"context"
	"errors"
	"time"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrVerificationNotFound = errors.New("email verification not found")

type EmailVerificationRepository interface {
	Create(v *domain.EmailVerification) error
	GetByKey(key string, forUpdate bool) (*domain.EmailVerification, error)
	// ResendAvailable reports whether no unverified, still-valid row for
	// the email was created within the minimum resend interval.
	ResendAvailable(email string, minInterval time.Duration) (bool, error)
	MarkVerified(id uint) (*domain.EmailVerification, error)
	RemoveAttempt(id uint) error
	// Transaction runs fn against a repository bound to one transaction.
	// The attempt decrement in the complete flow must commit even when the
	// surrounding check fails, which is why the caller owns the boundary.
	Transaction(fn func(tx EmailVerificationRepository) error) error
}

type GormEmailVerificationRepository struct{ db *gorm.DB }

func NewEmailVerificationRepository(db *gorm.DB) EmailVerificationRepository {
	return &GormEmailVerificationRepository{db: db}
}

func (r *GormEmailVerificationRepository) Create(v *domain.EmailVerification) error {
	err := r.db.Create(v).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "email_verification", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "email_verification", "create", "success")
	return nil
}

func (r *GormEmailVerificationRepository) GetByKey(key string, forUpdate bool) (*domain.EmailVerification, error) {
	var v domain.EmailVerification
	q := r.db
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("key = ?", key).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "email_verification", "get_by_key", "not_found")
			return nil, ErrVerificationNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "email_verification", "get_by_key", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "email_verification", "get_by_key", "success")
	return &v, nil
}

func (r *GormEmailVerificationRepository) ResendAvailable(email string, minInterval time.Duration) (bool, error) {
	var count int64
	now := time.Now().UTC()
	cutoff := now.Add(-minInterval)
	// An expired code cannot be completed anymore, so it must not block a
	// fresh one even while the resend interval is still running.
	err := r.db.Model(&domain.EmailVerification{}).
		Where("email = ? AND created_at > ? AND verified = ? AND valid_until > ?", email, cutoff, false, now).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "email_verification", "resend_available", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "email_verification", "resend_available", "success")
	return count == 0, nil
}

func (r *GormEmailVerificationRepository) MarkVerified(id uint) (*domain.EmailVerification, error) {
	err := r.db.Model(&domain.EmailVerification{}).
		Where("id = ?", id).
		UpdateColumn("verified", true).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "email_verification", "mark_verified", "error")
		return nil, err
	}
	var v domain.EmailVerification
	if err := r.db.First(&v, id).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "email_verification", "mark_verified", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "email_verification", "mark_verified", "success")
	return &v, nil
}

func (r *GormEmailVerificationRepository) RemoveAttempt(id uint) error {
	err := r.db.Model(&domain.EmailVerification{}).
		Where("id = ? AND attempts_left > 0", id).
		UpdateColumn("attempts_left", gorm.Expr("attempts_left - 1")).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "email_verification", "remove_attempt", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "email_verification", "remove_attempt", "success")
	return nil
}

func (r *GormEmailVerificationRepository) Transaction(fn func(tx EmailVerificationRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormEmailVerificationRepository{db: tx})
	})
}
