package domain

// SessionData is the denormalized per-request authorization projection of an
// AuthSession joined with its User. It is derived, cacheable, and always
// reconstructable from the authoritative rows.
type SessionData struct {
	SessionID   uint     `json:"session_id"`
	SessionUUID string   `json:"session_uuid"`
	Presign     bool     `json:"presign"`
	UserID      uint     `json:"user_id"`
	UserUUID    string   `json:"user_uuid"`
	UserGroupID int      `json:"user_group_id"`
	Platform    Platform `json:"platform"`
}

func BuildSessionData(session *AuthSession, user *User) SessionData {
	return SessionData{
		SessionID:   session.ID,
		SessionUUID: session.UUID,
		Presign:     session.Presign,
		UserID:      user.ID,
		UserUUID:    user.UUID,
		UserGroupID: user.GroupID,
		Platform:    session.Platform,
	}
}
