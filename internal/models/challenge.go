package models

import "time"

// Challenge is a time-boxed physical activity tied to a session.
type Challenge struct {
	BaseModel

	SessionID   string          `gorm:"type:uuid;not null;index" json:"session_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	TimeLimit   int             `gorm:"not null" json:"time_limit"` // minutes
	ExpiryTime  time.Time       `gorm:"not null;index" json:"expiry_time"`
	Status      ChallengeStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`

	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}
