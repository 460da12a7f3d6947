package models

import "time"

// Invitation is a time-limited, tokenized offer for a second user to join a
// peer challenge. The token is random and URL-safe; invitee fields stay nil
// until the invitation is accepted.
type Invitation struct {
	BaseModel

	SessionID        string           `gorm:"type:uuid;not null;index" json:"session_id"`
	InviterUserID    string           `gorm:"type:uuid;not null;index" json:"inviter_user_id"`
	InviteeUserID    *string          `gorm:"type:uuid;index" json:"invitee_user_id,omitempty"`
	InviteeSessionID *string          `gorm:"type:uuid" json:"invitee_session_id,omitempty"`
	Token            string           `gorm:"uniqueIndex;not null" json:"-"`
	Status           InvitationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Description      string           `gorm:"type:text;not null" json:"challenge_description"`
	TimeLimit        int              `gorm:"not null" json:"challenge_time_limit"`
	ExpiryTime       time.Time        `gorm:"not null;index" json:"expiry_time"`

	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	Inviter *Profile `gorm:"foreignKey:InviterUserID" json:"inviter,omitempty"`
}
