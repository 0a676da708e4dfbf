package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/introhub/internal/database/testutil"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/monitoring"
)

func TestCleanupTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)
	ada := seedUser(t, db, "ada@example.com")
	bob := seedUser(t, db, "bob@example.com")

	used := now.Add(-time.Minute)
	for _, token := range []models.MagicLinkToken{
		{UserID: ada.ID, Email: "ada@example.com", TokenHash: "expired", ExpiresAt: now.Add(-time.Hour)},
		{UserID: ada.ID, Email: "ada@example.com", TokenHash: "used", ExpiresAt: now.Add(time.Hour), UsedAt: &used},
		{UserID: ada.ID, Email: "ada@example.com", TokenHash: "active", ExpiresAt: now.Add(time.Hour)},
	} {
		token := token
		require.NoError(t, db.Create(&token).Error)
	}

	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	expiredRequest := models.ConnectionRequest{
		FromUserID: ada.ID, ToUserID: bob.ID, Status: models.ConnectionRequestDeclined,
		TokenHash: "req-expired", TokenExpiresAt: &past,
	}
	activeRequest := models.ConnectionRequest{
		FromUserID: bob.ID, ToUserID: ada.ID, Status: models.ConnectionRequestPending,
		PendingKey: models.PendingRequestKey(bob.ID, ada.ID), TokenHash: "req-active", TokenExpiresAt: &future,
	}
	require.NoError(t, db.Create(&expiredRequest).Error)
	require.NoError(t, db.Create(&activeRequest).Error)

	expiredReferral := models.Referral{
		RefereeID: ada.ID, FirstDegreeID: bob.ID, ReferralID: bob.ID,
		Status: models.ReferralPending, TokenHash: "ref-expired", TokenExpiresAt: &past,
	}
	require.NoError(t, db.Create(&expiredReferral).Error)

	require.NoError(t, db.Create(&models.RateCounter{Key: "stale", Count: 4, ExpiresAt: now.Add(-time.Second)}).Error)
	require.NoError(t, db.Create(&models.RateCounter{Key: "live", Count: 1, ExpiresAt: now.Add(time.Minute)}).Error)

	stats, err := CleanupTokens(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.RateCounters)
	require.Equal(t, int64(2), stats.MagicLinks)
	require.Equal(t, int64(1), stats.ConnectionLinks)
	require.Equal(t, int64(1), stats.ReferralLinks)

	var remaining int64
	require.NoError(t, db.Model(&models.MagicLinkToken{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)

	var request models.ConnectionRequest
	require.NoError(t, db.First(&request, "id = ?", expiredRequest.ID).Error)
	require.Empty(t, request.TokenHash)
	require.Nil(t, request.TokenExpiresAt)

	var active models.ConnectionRequest
	require.NoError(t, db.First(&active, "id = ?", activeRequest.ID).Error)
	require.Equal(t, "req-active", active.TokenHash)
	require.NotNil(t, active.TokenExpiresAt)

	var referral models.Referral
	require.NoError(t, db.First(&referral, "id = ?", expiredReferral.ID).Error)
	require.Empty(t, referral.TokenHash)
	require.Equal(t, models.ReferralPending, referral.Status)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	user := seedUser(t, db, "cleanup@example.com")

	old := clock.Now().AddDate(0, 0, -10)
	notifications := []models.Notification{
		{UserID: user.ID, Type: models.NotificationSystem, Title: "old read", IsRead: true},
		{UserID: user.ID, Type: models.NotificationSystem, Title: "old unread"},
		{UserID: user.ID, Type: models.NotificationSystem, Title: "fresh read", IsRead: true},
	}
	for i := range notifications {
		require.NoError(t, db.Create(&notifications[i]).Error)
	}
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id IN ?", []string{notifications[0].ID, notifications[1].ID}).
		Update("created_at", old).Error)
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", notifications[2].ID).
		Update("created_at", clock.Now()).Error)

	require.NoError(t, db.Create(&models.MagicLinkToken{
		UserID:    user.ID,
		Email:     "cleanup@example.com",
		TokenHash: "expired",
		ExpiresAt: clock.Now().Add(-time.Hour),
	}).Error)

	tracker := monitoring.NewJobTracker()
	c := NewCleaner(db,
		WithNow(clock.Now),
		WithNotificationRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
		WithTracker(tracker),
	)
	require.NoError(t, c.RunOnce(context.Background()))

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, JobNotificationPruning, jobs[0].Job)
	require.Equal(t, JobTokenCleanup, jobs[1].Job)
	require.EqualValues(t, 1, jobs[1].TotalRuns)
	require.Zero(t, jobs[1].ConsecutiveFailures)

	var titles []string
	require.NoError(t, db.Model(&models.Notification{}).Order("title").Pluck("title", &titles).Error)
	require.Equal(t, []string{"fresh read", "old unread"}, titles)

	var tokenCount int64
	require.NoError(t, db.Model(&models.MagicLinkToken{}).Count(&tokenCount).Error)
	require.Equal(t, int64(0), tokenCount)
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	c := NewCleaner(db, WithTokenSchedule("not a schedule"))
	require.Error(t, c.Start())

	ok := NewCleaner(db, WithTokenSchedule("@every 1h"), WithNotificationSchedule("@every 24h"))
	require.NoError(t, ok.Start())
	<-ok.Stop().Done()

	require.NoError(t, NewCleaner(nil).Start())
	require.NoError(t, NewCleaner(nil).RunOnce(context.Background()))
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Email: &email, FirstName: "Cleanup", UserType: models.UserTypeReferee}
	require.NoError(t, db.Create(user).Error)
	return user
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
