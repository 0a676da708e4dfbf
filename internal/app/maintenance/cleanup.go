package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/cache"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/monitoring"
	"github.com/charlesng35/introhub/pkg/logger"
)

const (
	defaultNotificationRetentionDays = 90
	defaultTokenSpec                 = "@hourly"
	defaultNotificationSpec          = "@daily"

	// JobTokenCleanup and JobNotificationPruning name the scheduled jobs.
	JobTokenCleanup        = "token_cleanup"
	JobNotificationPruning = "notification_pruning"
)

// Cleaner coordinates background maintenance tasks such as purging spent
// sign-in links, expiring emailed workflow links and pruning old notifications.
type Cleaner struct {
	db        *gorm.DB
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	tracker   *monitoring.JobTracker
	retention int

	tokenSchedule        string
	notificationSchedule string
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

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTracker records every job run for health probes.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are kept.
// Zero or negative values keep the default.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithTokenSchedule overrides the cron expression for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithNotificationSchedule overrides the cron expression for notification pruning.
func WithNotificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.notificationSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil db disables every job.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                   db,
		now:                  time.Now,
		retention:            defaultNotificationRetentionDays,
		tokenSchedule:        defaultTokenSpec,
		notificationSchedule: defaultNotificationSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.tokenSchedule, func() { c.runTokenCleanup(context.Background()) }); err != nil {
		return fmt.Errorf("maintenance: schedule token cleanup: %w", err)
	}
	if _, err := c.cron.AddFunc(c.notificationSchedule, func() { c.runNotificationPruning(context.Background()) }); err != nil {
		return fmt.Errorf("maintenance: schedule notification pruning: %w", err)
	}
	c.tracker.Expect(JobTokenCleanup)
	c.tracker.Expect(JobNotificationPruning)

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

// RunOnce executes all cleanup routines sequentially and aggregates their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.db == nil {
		return nil
	}

	return multierr.Append(c.runTokenCleanup(ctx), c.runNotificationPruning(ctx))
}

func (c *Cleaner) runTokenCleanup(ctx context.Context) error {
	start := time.Now()
	stats, err := CleanupTokens(ctx, c.db, c.now())
	c.tracker.RecordRun(JobTokenCleanup, err, time.Since(start))
	if err != nil {
		c.log.Warn("token cleanup failed", zap.Error(err))
		return err
	}
	c.log.Debug("token cleanup finished",
		zap.Int64("magic_links", stats.MagicLinks),
		zap.Int64("connection_links", stats.ConnectionLinks),
		zap.Int64("referral_links", stats.ReferralLinks),
		zap.Int64("rate_counters", stats.RateCounters),
	)
	return nil
}

func (c *Cleaner) runNotificationPruning(ctx context.Context) error {
	start := time.Now()
	removed, err := PruneNotifications(ctx, c.db, c.cutoff())
	c.tracker.RecordRun(JobNotificationPruning, err, time.Since(start))
	if err != nil {
		c.log.Warn("notification pruning failed", zap.Error(err))
		return err
	}
	c.log.Debug("notification pruning finished", zap.Int64("removed", removed))
	return nil
}

func (c *Cleaner) cutoff() time.Time {
	return c.now().AddDate(0, 0, -c.retention)
}

// TokenCleanupStats captures how many records each cleanup step touched.
type TokenCleanupStats struct {
	MagicLinks      int64
	ConnectionLinks int64
	ReferralLinks   int64
	RateCounters    int64
}

// CleanupTokens deletes expired or used sign-in links and clears the hashes of
// expired emailed workflow links so they can never be matched again.
func CleanupTokens(ctx context.Context, db *gorm.DB, now time.Time) (TokenCleanupStats, error) {
	if db == nil {
		return TokenCleanupStats{}, errors.New("cleanup tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := TokenCleanupStats{}
	var err error

	result := db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", now).
		Delete(&models.MagicLinkToken{})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: magic links: %w", result.Error)
	}
	stats.MagicLinks = result.RowsAffected

	expire := map[string]any{"token_hash": "", "token_expires_at": nil}

	result = db.WithContext(ctx).
		Model(&models.ConnectionRequest{}).
		Where("token_hash <> '' AND token_expires_at < ?", now).
		Updates(expire)
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: connection requests: %w", result.Error)
	}
	stats.ConnectionLinks = result.RowsAffected

	result = db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("token_hash <> '' AND token_expires_at < ?", now).
		Updates(expire)
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: referrals: %w", result.Error)
	}
	stats.ReferralLinks = result.RowsAffected

	stats.RateCounters, err = cache.PurgeExpired(ctx, db, now)
	if err != nil {
		return stats, fmt.Errorf("cleanup tokens: rate counters: %w", err)
	}

	return stats, nil
}

// PruneNotifications removes read notifications created before cutoff.
func PruneNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("prune notifications: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
