package models

// Profile stores account data plus the cumulative point total used for
// ranking. TotalPoints never goes below zero.
type Profile struct {
	BaseModel

	Name         string   `gorm:"not null" json:"name"`
	Email        string   `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Age          *int     `json:"age,omitempty"`
	HeightCM     *float64 `gorm:"column:height_cm" json:"height,omitempty"`
	WeightKG     *float64 `gorm:"column:weight_kg" json:"weight,omitempty"`
	TotalPoints  int      `gorm:"not null;default:0" json:"total_points"`
}
