package models

import "time"

// Preference records how often a user has consumed an item within a derived
// category. OrderCount only ever increases; rows are never deleted.
type Preference struct {
	BaseModel

	UserID      string     `gorm:"type:uuid;not null;index:idx_pref_user_cat" json:"user_id"`
	Category    string     `gorm:"not null;index:idx_pref_user_cat" json:"category"`
	Item        string     `gorm:"not null" json:"item"`
	OrderCount  int        `gorm:"not null;default:1" json:"order_count"`
	LastOrdered *time.Time `json:"last_ordered,omitempty"`
}
