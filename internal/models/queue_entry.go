package models

// QueueEntry is a user's pending request to be paired for random
// matchmaking, banded by calorie target. At most one waiting entry exists per
// user; matched entries are also written for the joining side so both users
// can poll the same endpoint.
type QueueEntry struct {
	BaseModel

	UserID    string      `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID string      `gorm:"type:uuid;not null;index" json:"session_id"`
	Calories  int         `gorm:"not null;index" json:"calories"`
	Status    QueueStatus `gorm:"type:varchar(16);not null;index" json:"status"`

	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}
