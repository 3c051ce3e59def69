package domain

import "time"

// AccessServer tags which physical store currently owns the authoritative
// user row. It is resolved per request; only AuthSession persists it, so a
// session always reads its user back from the store that issued the id.
type AccessServer string

const (
	AccessServerPrimary   AccessServer = "primary"
	AccessServerSecondary AccessServer = "secondary"
)

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UUID         string     `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	GroupID      int        `gorm:"not null;uniqueIndex:idx_users_username_group" json:"group_id"`
	Username     *string    `gorm:"size:255;uniqueIndex:idx_users_username_group" json:"username,omitempty"`
	PasswordHash *string    `gorm:"size:128" json:"-"`
	RefreshToken *string    `gorm:"size:128;index" json:"-"`
	Deactivated  bool       `gorm:"not null;default:false" json:"deactivated"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `gorm:"index" json:"deleted_at,omitempty"`

	// AccessServer travels with the value for the remainder of the request
	// and selects the physical connection for subsequent reads and writes.
	AccessServer AccessServer `gorm:"-" json:"-"`
}

func (u *User) UsernameValue() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}
