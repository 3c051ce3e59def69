package domain

import "time"

// OneTimePassword is a short-lived numeric credential bound to a
// (username, group) pair. Rows are append-only: a row is mutated only by
// the check-count decrement and the invalidation flag.
type OneTimePassword struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	Username   string    `gorm:"size:255;index:idx_otp_username_group;not null" json:"username"`
	GroupID    int       `gorm:"index:idx_otp_username_group;not null" json:"group_id"`
	Password   string    `gorm:"size:16;not null" json:"-"`
	ValidUntil time.Time `gorm:"index;not null" json:"valid_until"`
	CheckCount int       `gorm:"not null" json:"check_count"`
	Invalid    bool      `gorm:"not null;default:false" json:"invalid"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
