package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cravequest/backend/internal/database"
	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/services"
)

func openMaintenanceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func seedMaintenanceFixture(t *testing.T, db *gorm.DB, now time.Time) {
	t.Helper()

	user := models.Profile{Name: "Ada", Email: "ada@example.com", PasswordHash: "hashed"}
	require.NoError(t, db.Create(&user).Error)

	session := models.Session{UserID: user.ID, CraveItem: "Ramen"}
	require.NoError(t, db.Create(&session).Error)

	invitations := []models.Invitation{
		{SessionID: session.ID, InviterUserID: user.ID, Token: "stale", Status: models.InvitationPending, Description: "Run", TimeLimit: 30, ExpiryTime: now.Add(-time.Minute)},
		{SessionID: session.ID, InviterUserID: user.ID, Token: "fresh", Status: models.InvitationPending, Description: "Run", TimeLimit: 30, ExpiryTime: now.Add(time.Minute)},
		{SessionID: session.ID, InviterUserID: user.ID, Token: "done", Status: models.InvitationAccepted, Description: "Run", TimeLimit: 30, ExpiryTime: now.Add(-time.Minute)},
	}
	for i := range invitations {
		require.NoError(t, db.Create(&invitations[i]).Error)
	}

	entries := []models.QueueEntry{
		{UserID: user.ID, SessionID: session.ID, Calories: 400, Status: models.QueueWaiting},
		{UserID: user.ID, SessionID: session.ID, Calories: 400, Status: models.QueueWaiting},
		{UserID: user.ID, SessionID: session.ID, Calories: 400, Status: models.QueueMatched},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}
	// Backdate one waiting entry beyond the queue window.
	require.NoError(t, db.Model(&models.QueueEntry{}).
		Where("id = ?", entries[0].ID).
		Update("created_at", now.Add(-services.QueueExpiry-time.Minute)).Error)

	challenges := []models.Challenge{
		{SessionID: session.ID, Description: "Walk", TimeLimit: 30, Status: models.ChallengePending, ExpiryTime: now.Add(-time.Hour)},
		{SessionID: session.ID, Description: "Jog", TimeLimit: 20, Status: models.ChallengeActive, ExpiryTime: now.Add(-time.Hour)},
		{SessionID: session.ID, Description: "Swim", TimeLimit: 20, Status: models.ChallengeActive, ExpiryTime: now.Add(time.Hour)},
		{SessionID: session.ID, Description: "Row", TimeLimit: 20, Status: models.ChallengeCompleted, ExpiryTime: now.Add(-time.Hour)},
	}
	for i := range challenges {
		require.NoError(t, db.Create(&challenges[i]).Error)
	}
}

func TestCleanupSweeps(t *testing.T) {
	db := openMaintenanceTestDB(t)
	now := time.Now().UTC()
	seedMaintenanceFixture(t, db, now)

	count, err := CleanupInvitations(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = CleanupQueueEntries(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = CleanupChallenges(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	assertCount := func(model any, status string, expected int64) {
		var got int64
		require.NoError(t, db.Model(model).Where("status = ?", status).Count(&got).Error)
		require.Equal(t, expected, got)
	}

	assertCount(&models.Invitation{}, string(models.InvitationExpired), 1)
	assertCount(&models.Invitation{}, string(models.InvitationPending), 1)
	assertCount(&models.QueueEntry{}, string(models.QueueExpired), 1)
	assertCount(&models.QueueEntry{}, string(models.QueueWaiting), 1)
	assertCount(&models.Challenge{}, string(models.ChallengeExpired), 2)
	assertCount(&models.Challenge{}, string(models.ChallengeCompleted), 1)
}

func TestCleanerRunOnce(t *testing.T) {
	db := openMaintenanceTestDB(t)
	now := time.Now().UTC()
	seedMaintenanceFixture(t, db, now)

	cleaner := NewCleaner(db, WithNow(func() time.Time { return now }))

	stats, err := cleaner.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Invitations)
	require.Equal(t, int64(1), stats.QueueEntries)
	require.Equal(t, int64(2), stats.Challenges)

	// A second pass finds nothing left to expire.
	stats, err = cleaner.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{}, stats)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	db := openMaintenanceTestDB(t)

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(db, WithCron(scheduler),
		WithInviteSchedule("@every 1h"),
		WithQueueSchedule("@every 1h"),
		WithChallengeSchedule("@every 1h"),
	)

	require.NoError(t, cleaner.Start())
	require.Len(t, scheduler.Entries(), 3)
	<-cleaner.Stop().Done()
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := openMaintenanceTestDB(t)

	cleaner := NewCleaner(db, WithInviteSchedule("not-a-spec"))
	require.Error(t, cleaner.Start())
}

func TestCleanerNilDB(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.NoError(t, cleaner.Start())

	stats, err := cleaner.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{}, stats)
}
