package models

// Rank maps an inclusive points range to a display tier. The seeded table is
// monotonic with no gaps; lookups that fall outside it get a default tier.
type Rank struct {
	BaseModel

	RankType  string `gorm:"uniqueIndex;not null" json:"rank_type"`
	MinPoints int    `gorm:"not null;index" json:"min_points"`
	MaxPoints int    `gorm:"not null;index" json:"max_points"`
}
