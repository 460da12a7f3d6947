package database

import (
	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.Session{},
		&models.Challenge{},
		&models.Invitation{},
		&models.QueueEntry{},
		&models.Match{},
		&models.Preference{},
		&models.Rank{},
	)
}

// SeedData populates the default rank tiers. Existing tiers are left
// untouched so operators can tune thresholds after first boot.
func SeedData(db *gorm.DB) error {
	ranks := []models.Rank{
		{RankType: "Beginner", MinPoints: 0, MaxPoints: 99},
		{RankType: "Bronze", MinPoints: 100, MaxPoints: 499},
		{RankType: "Silver", MinPoints: 500, MaxPoints: 1499},
		{RankType: "Gold", MinPoints: 1500, MaxPoints: 1 << 30},
	}

	for _, rank := range ranks {
		if err := db.Where(models.Rank{RankType: rank.RankType}).
			Attrs(rank).
			FirstOrCreate(&models.Rank{}).Error; err != nil {
			return err
		}
	}

	return nil
}
