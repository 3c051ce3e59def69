package domain

import "time"

type EmailVerification struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Key          string    `gorm:"size:36;uniqueIndex;not null" json:"key"`
	Email        string    `gorm:"size:255;index;not null" json:"email"`
	Code         string    `gorm:"size:16;not null" json:"-"`
	AttemptsLeft int       `gorm:"not null" json:"attempts_left"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	ValidUntil   time.Time `gorm:"not null" json:"valid_until"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
