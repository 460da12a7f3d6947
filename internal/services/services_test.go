package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cravequest/backend/internal/generator"
	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/places"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Session{},
		&models.Challenge{},
		&models.Invitation{},
		&models.QueueEntry{},
		&models.Match{},
		&models.Preference{},
		&models.Rank{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string) models.Profile {
	t.Helper()

	profile := models.Profile{Name: name, Email: email, PasswordHash: "hashed"}
	require.NoError(t, db.Create(&profile).Error)
	return profile
}

func createTestSession(t *testing.T, db *gorm.DB, userID, craveItem string, calories *int, sessionType models.SessionType) models.Session {
	t.Helper()

	session := models.Session{
		UserID:      userID,
		CraveItem:   craveItem,
		Calories:    calories,
		SessionType: sessionType,
	}
	require.NoError(t, db.Create(&session).Error)
	return session
}

func seedTestRanks(t *testing.T, db *gorm.DB) {
	t.Helper()

	ranks := []models.Rank{
		{RankType: "Beginner", MinPoints: 0, MaxPoints: 99},
		{RankType: "Bronze", MinPoints: 100, MaxPoints: 499},
		{RankType: "Silver", MinPoints: 500, MaxPoints: 1499},
		{RankType: "Gold", MinPoints: 1500, MaxPoints: 1 << 30},
	}
	for i := range ranks {
		require.NoError(t, db.Create(&ranks[i]).Error)
	}
}

func intPtr(v int) *int { return &v }

// stubGenerator returns canned content so tests stay deterministic and make
// no network calls.
type stubGenerator struct {
	options    []generator.CravingOption
	optionsErr error
	calories   int
	challenges []generator.ChallengeSuggestion
}

func (s *stubGenerator) GenerateCravingOptions(_ context.Context, craveItem string, _ []places.Place, _ []generator.PreferenceHint) ([]generator.CravingOption, error) {
	if s.optionsErr != nil {
		return nil, s.optionsErr
	}
	if len(s.options) == 0 {
		return []generator.CravingOption{{
			Option:      craveItem,
			Store:       "Test Store",
			Description: "A " + craveItem,
		}}, nil
	}
	return s.options, nil
}

func (s *stubGenerator) EstimateCalories(context.Context, string) int {
	if s.calories <= 0 {
		return generator.DefaultCalories
	}
	return s.calories
}

func (s *stubGenerator) GenerateChallenges(_ context.Context, calories int, _ *int, _ *float64) []generator.ChallengeSuggestion {
	if len(s.challenges) == 0 {
		return generator.FallbackChallenges(calories)
	}
	return s.challenges
}

// stubSearcher returns a fixed venue list.
type stubSearcher struct {
	results []places.Place
}

func (s *stubSearcher) Search(context.Context, string, float64, float64) []places.Place {
	return s.results
}
