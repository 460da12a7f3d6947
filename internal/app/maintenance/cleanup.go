// Package maintenance runs the background sweeps that push stale rows to
// their terminal states: invitations past their deadline, matchmaking queue
// entries nobody claimed, and challenges that ran out the clock without being
// completed. The request path expires these lazily on read; the sweeps keep
// the tables honest for rows nobody polls again.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/logger"
	"github.com/cravequest/backend/pkg/metrics"
)

const (
	defaultInviteSpec    = "@every 1m"
	defaultQueueSpec     = "@every 1m"
	defaultChallengeSpec = "@every 10m"
)

// Stats reports how many rows each sweep expired.
type Stats struct {
	Invitations  int64
	QueueEntries int64
	Challenges   int64
}

// Cleaner coordinates the background expiry sweeps on a cron schedule.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	inviteSchedule    string
	queueSchedule     string
	challengeSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithInviteSchedule overrides the cron specification for the invitation sweep.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// WithQueueSchedule overrides the cron specification for the queue sweep.
func WithQueueSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.queueSchedule = spec
		}
	}
}

// WithChallengeSchedule overrides the cron specification for the challenge sweep.
func WithChallengeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.challengeSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                db,
		now:               time.Now,
		inviteSchedule:    defaultInviteSpec,
		queueSchedule:     defaultQueueSpec,
		challengeSchedule: defaultChallengeSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the sweeps with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	jobs := []struct {
		spec string
		name string
		run  func(context.Context, *gorm.DB, time.Time) (int64, error)
	}{
		{c.inviteSchedule, "invitation sweep", CleanupInvitations},
		{c.queueSchedule, "queue sweep", CleanupQueueEntries},
		{c.challengeSchedule, "challenge sweep", CleanupChallenges},
	}

	for _, job := range jobs {
		job := job
		if _, err := c.cron.AddFunc(job.spec, func() {
			if _, err := job.run(context.Background(), c.db, c.now()); err != nil {
				c.log.Warn(job.name+" failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all sweeps sequentially and reports aggregate counts.
// Used by tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
	)

	if c.db == nil {
		return stats, nil
	}

	now := c.now()

	count, err := CleanupInvitations(ctx, c.db, now)
	stats.Invitations = count
	errs = multierr.Append(errs, err)

	count, err = CleanupQueueEntries(ctx, c.db, now)
	stats.QueueEntries = count
	errs = multierr.Append(errs, err)

	count, err = CleanupChallenges(ctx, c.db, now)
	stats.Challenges = count
	errs = multierr.Append(errs, err)

	return stats, errs
}

// CleanupInvitations expires pending invitations whose deadline has passed.
func CleanupInvitations(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("status = ? AND expiry_time <= ?", models.InvitationPending, now).
		Update("status", models.InvitationExpired)
	return result.RowsAffected, result.Error
}

// CleanupQueueEntries expires waiting queue entries older than the queue
// window, mirroring the lazy expiry applied on status polls.
func CleanupQueueEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	cutoff := now.Add(-services.QueueExpiry)
	result := db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("status = ? AND created_at <= ?", models.QueueWaiting, cutoff).
		Update("status", models.QueueExpired)
	if result.Error == nil && result.RowsAffected > 0 {
		metrics.QueueWaiting.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, result.Error
}

// CleanupChallenges expires pending and active challenges past their expiry.
func CleanupChallenges(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("status IN ? AND expiry_time <= ?", []models.ChallengeStatus{models.ChallengePending, models.ChallengeActive}, now).
		Update("status", models.ChallengeExpired)
	if result.Error == nil && result.RowsAffected > 0 {
		metrics.ChallengeTransitions.WithLabelValues(string(models.ChallengeExpired)).Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, result.Error
}
