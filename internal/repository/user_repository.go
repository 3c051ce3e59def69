package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByUUID(userUUID string) (*domain.User, error)
	FindByUsername(username string, groupID int) (*domain.User, error)
	// FindLiveByUsername matches a username across groups, skipping
	// tombstoned rows. Used to answer "is this identity already claimed".
	FindLiveByUsername(username string) (*domain.User, error)
	Create(user *domain.User) error
	// Register writes credentials onto an existing (presign) user row.
	Register(id uint, username, passwordHash string) (*domain.User, error)
	// SaveRefreshToken maintains the legacy single-token model: one opaque
	// refresh token stored on the user row. nil clears it (logout).
	SaveRefreshToken(id uint, token *string) error
	// Deactivate soft-deletes the account and tombstones the username so
	// the same identity can be claimed again later.
	Deactivate(id uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	return r.finish("find_by_id", &u, err)
}

func (r *GormUserRepository) FindByUUID(userUUID string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("uuid = ?", userUUID).First(&u).Error
	return r.finish("find_by_uuid", &u, err)
}

func (r *GormUserRepository) FindByUsername(username string, groupID int) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("username = ? AND group_id = ?", username, groupID).First(&u).Error
	return r.finish("find_by_username", &u, err)
}

func (r *GormUserRepository) FindLiveByUsername(username string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("username = ? AND deleted_at IS NULL", username).First(&u).Error
	return r.finish("find_live_by_username", &u, err)
}

func (r *GormUserRepository) Create(user *domain.User) error {
	if user.UUID == "" {
		user.UUID = uuid.NewString()
	}
	err := r.db.Create(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) Register(id uint, username, passwordHash string) (*domain.User, error) {
	res := r.db.Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"username":      username,
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "register", "error")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "register", "not_found")
		return nil, ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "register", "success")
	return r.FindByID(id)
}

func (r *GormUserRepository) SaveRefreshToken(id uint, token *string) error {
	err := r.db.Model(&domain.User{}).
		Where("id = ?", id).
		Update("refresh_token", token).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "save_refresh_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "save_refresh_token", "success")
	return nil
}

func (r *GormUserRepository) Deactivate(id uint) error {
	u, err := r.FindByID(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"deactivated": true,
		"deleted_at":  now,
	}
	if u.Username != nil {
		updates["username"] = fmt.Sprintf("%s__deleted__%s", *u.Username, u.UUID)
	}
	err = r.db.Model(&domain.User{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "deactivate", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "deactivate", "success")
	return nil
}

func (r *GormUserRepository) finish(op string, u *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", op, "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", op, "success")
	return u, nil
}
