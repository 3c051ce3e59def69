package domain

import "time"

type Platform string

const (
	PlatformAndroid Platform = "mobile_android_app"
	PlatformIOS     Platform = "mobile_ios_app"
	PlatformWeb     Platform = "web"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformWeb:
		return true
	}
	return false
}

type AuthSession struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	UUID string `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	// UserID is an auto-increment local to one store; AccessServer records
	// which store assigned it, so the pair is what identifies the user.
	UserID       uint         `gorm:"index;not null" json:"user_id"`
	AccessServer AccessServer `gorm:"size:16;not null;default:primary" json:"-"`
	Platform     Platform     `gorm:"size:32;not null" json:"platform"`
	Presign      bool         `gorm:"not null;default:false" json:"presign"`
	RefreshToken string       `gorm:"size:36;uniqueIndex;not null" json:"-"`
	FCMToken     *string      `gorm:"size:512" json:"-"`
	RevokedAt    *time.Time   `gorm:"index" json:"revoked_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
