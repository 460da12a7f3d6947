package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cravequest/backend/internal/models"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, sqlDB.Ping())
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrateAndSeed(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrateAndSeed(db))

	var count int64
	require.NoError(t, db.Model(&models.Rank{}).Count(&count).Error)
	require.Equal(t, int64(4), count)

	// Seeding twice must not duplicate tiers.
	require.NoError(t, AutoMigrateAndSeed(db))
	require.NoError(t, db.Model(&models.Rank{}).Count(&count).Error)
	require.Equal(t, int64(4), count)

	var beginner models.Rank
	require.NoError(t, db.Where("rank_type = ?", "Beginner").First(&beginner).Error)
	require.Equal(t, 0, beginner.MinPoints)
	require.Equal(t, 99, beginner.MaxPoints)
}

func TestAutoMigrateAndSeedNilDB(t *testing.T) {
	require.Error(t, AutoMigrateAndSeed(nil))
}
