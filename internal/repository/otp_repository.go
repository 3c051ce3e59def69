package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrOTPNotFound = errors.New("no eligible one-time password")

type OTPRepository interface {
	Create(otp *domain.OneTimePassword) error
	// ConsumeForCheck spends one verification attempt on the newest
	// still-valid, non-invalidated row for the (username, group) pair and
	// returns its value. Spending and reading happen under a row lock so
	// concurrent checks cannot each get a free attempt. Returns
	// ErrOTPNotFound when no row is eligible (expired or budget spent).
	ConsumeForCheck(username string, groupID int) (string, error)
	// TimeUntilNextSend reports how long the caller must wait before a new
	// code may be sent. It reads the newest row regardless of validity or
	// invalidation. A store failure blocks sending for the full window
	// rather than letting a burst through.
	TimeUntilNextSend(username string, groupID int, retryWindow time.Duration) time.Duration
	InvalidateAll(username string, groupID int) error
}

type GormOTPRepository struct{ db *gorm.DB }

func NewOTPRepository(db *gorm.DB) OTPRepository { return &GormOTPRepository{db: db} }

func (r *GormOTPRepository) Create(otp *domain.OneTimePassword) error {
	err := r.db.Create(otp).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "otp", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "otp", "create", "success")
	return nil
}

func (r *GormOTPRepository) ConsumeForCheck(username string, groupID int) (string, error) {
	var value string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var otp domain.OneTimePassword
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ? AND group_id = ? AND valid_until > ? AND check_count > 0 AND invalid = ?",
				username, groupID, time.Now().UTC(), false).
			Order("created_at DESC").
			First(&otp).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOTPNotFound
			}
			return err
		}
		res := tx.Model(&domain.OneTimePassword{}).
			Where("id = ? AND check_count > 0", otp.ID).
			UpdateColumn("check_count", gorm.Expr("check_count - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOTPNotFound
		}
		value = otp.Password
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "otp", "consume_for_check", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "otp", "consume_for_check", "error")
		}
		return "", err
	}
	observability.RecordRepositoryOperation(context.Background(), "otp", "consume_for_check", "success")
	return value, nil
}

func (r *GormOTPRepository) TimeUntilNextSend(username string, groupID int, retryWindow time.Duration) time.Duration {
	var otp domain.OneTimePassword
	err := r.db.Where("username = ? AND group_id = ?", username, groupID).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "otp", "time_until_next_send", "not_found")
			return 0
		}
		observability.RecordRepositoryOperation(context.Background(), "otp", "time_until_next_send", "error")
		slog.Error("otp throttle lookup failed, blocking send for full window", "error", err)
		return retryWindow
	}
	observability.RecordRepositoryOperation(context.Background(), "otp", "time_until_next_send", "success")
	remaining := retryWindow - time.Since(otp.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (r *GormOTPRepository) InvalidateAll(username string, groupID int) error {
	err := r.db.Model(&domain.OneTimePassword{}).
		Where("username = ? AND group_id = ? AND invalid = ?", username, groupID, false).
		UpdateColumn("invalid", true).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "otp", "invalidate_all", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "otp", "invalidate_all", "success")
	return nil
}
