package models

// Match pairs two users against the same challenge. WinnerUserID is set only
// once both sides have completed and the match moves to completed.
type Match struct {
	BaseModel

	User1ID      string      `gorm:"type:uuid;not null;index" json:"user1_id"`
	User2ID      string      `gorm:"type:uuid;not null;index" json:"user2_id"`
	Session1ID   string      `gorm:"type:uuid;not null;index" json:"session1_id"`
	Session2ID   string      `gorm:"type:uuid;not null;index" json:"session2_id"`
	Description  string      `gorm:"type:text;not null" json:"challenge_description"`
	TimeLimit    int         `gorm:"not null" json:"challenge_time_limit"`
	Status       MatchStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	WinnerUserID *string     `gorm:"type:uuid" json:"winner_user_id,omitempty"`
}
