package models

import "gorm.io/datatypes"

// Session is one craving-to-resolution journey: craving submitted, option
// selected, session type chosen, challenge resolved. The engine mutates it as
// the flow progresses but never deletes it.
type Session struct {
	BaseModel

	UserID          string         `gorm:"type:uuid;not null;index" json:"user_id"`
	CraveItem       string         `gorm:"not null" json:"crave_item"`
	Calories        *int           `json:"calories,omitempty"`
	SessionType     SessionType    `gorm:"type:varchar(32);index" json:"session_type,omitempty"`
	Rating          *int           `json:"rating,omitempty"`
	LocationOptions datatypes.JSON `gorm:"type:json" json:"location_options,omitempty"`

	User *Profile `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
