package repository

import (
	"context"
	"errors"
	"time"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound   = errors.New("auth session not found")
	ErrWrongRefreshToken = errors.New("wrong auth session refresh token")
)

type SessionRepository interface {
	Create(s *domain.AuthSession) error
	// CreateWithPresignUser inserts an anonymous user row and the presign
	// session built on top of it in one transaction, so a failed session
	// insert cannot leave an orphaned user behind.
	CreateWithPresignUser(groupID int, build func(user *domain.User) *domain.AuthSession) (*domain.User, *domain.AuthSession, error)
	// FindByUUID resolves a live session. Revoked sessions are treated as
	// absent.
	FindByUUID(sessionUUID string) (*domain.AuthSession, error)
	FindByID(id uint) (*domain.AuthSession, error)
	// Rotate is the sole code path that mutates refresh_token. It is a
	// single UPDATE matching both the session UUID and the currently
	// stored token; zero matched rows means forgery, replay of an already
	// rotated token, or a revoked session, all reported identically as
	// ErrWrongRefreshToken.
	Rotate(sessionUUID, presentedToken, newToken string) (*domain.AuthSession, error)
	Revoke(sessionUUID string) error
	SetFCMToken(sessionUUID string, token *string) error
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.AuthSession) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) CreateWithPresignUser(groupID int, build func(user *domain.User) *domain.AuthSession) (*domain.User, *domain.AuthSession, error) {
	user := &domain.User{
		UUID:    uuid.NewString(),
		GroupID: groupID,
	}
	var session *domain.AuthSession
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		session = build(user)
		return tx.Create(session).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create_presign", "error")
		return nil, nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create_presign", "success")
	return user, session, nil
}

func (r *GormSessionRepository) FindByUUID(sessionUUID string) (*domain.AuthSession, error) {
	var s domain.AuthSession
	err := r.db.Where("uuid = ? AND revoked_at IS NULL", sessionUUID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_uuid", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_uuid", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_uuid", "success")
	return &s, nil
}

func (r *GormSessionRepository) FindByID(id uint) (*domain.AuthSession, error) {
	var s domain.AuthSession
	err := r.db.First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "success")
	return &s, nil
}

func (r *GormSessionRepository) Rotate(sessionUUID, presentedToken, newToken string) (*domain.AuthSession, error) {
	res := r.db.Model(&domain.AuthSession{}).
		Where("uuid = ? AND refresh_token = ? AND revoked_at IS NULL", sessionUUID, presentedToken).
		Updates(map[string]any{"refresh_token": newToken, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "error")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "rejected")
		return nil, ErrWrongRefreshToken
	}
	var s domain.AuthSession
	if err := r.db.Where("uuid = ?", sessionUUID).First(&s).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "error")
		return nil, err
	}
	// The re-read can race a concurrent rotation that already replaced the
	// token again. This caller gets the token its own UPDATE installed,
	// never whatever currently happens to be on the row.
	s.RefreshToken = newToken
	observability.RecordRepositoryOperation(context.Background(), "session", "rotate", "success")
	return &s, nil
}

func (r *GormSessionRepository) Revoke(sessionUUID string) error {
	now := time.Now().UTC()
	err := r.db.Model(&domain.AuthSession{}).
		Where("uuid = ? AND revoked_at IS NULL", sessionUUID).
		UpdateColumn("revoked_at", now).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "revoke", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "revoke", "success")
	return nil
}

func (r *GormSessionRepository) SetFCMToken(sessionUUID string, token *string) error {
	err := r.db.Model(&domain.AuthSession{}).
		Where("uuid = ?", sessionUUID).
		Update("fcm_token", token).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "set_fcm_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "set_fcm_token", "success")
	return nil
}
