package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/database/testutil"
	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/models"
)

type serviceEnv struct {
	db            *gorm.DB
	mailer        *emails.RecordingMailer
	sender        *emails.Sender
	notifications *NotificationService
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	mailer := &emails.RecordingMailer{}
	notifier, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	return &serviceEnv{
		db:            db,
		mailer:        mailer,
		sender:        emails.NewSender(mailer, emails.WithBaseURL("https://intro.test")),
		notifications: notifier,
	}
}

func (e *serviceEnv) createUser(t *testing.T, first, email string, mutate ...func(*models.User)) *models.User {
	t.Helper()

	user := &models.User{
		FirstName: first,
		LastName:  "Tester",
		UserType:  models.UserTypeReferee,
	}
	if email != "" {
		user.Email = &email
	}
	for _, fn := range mutate {
		fn(user)
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *serviceEnv) notificationsOf(t *testing.T, userID string, kind models.NotificationType) []models.Notification {
	t.Helper()

	var rows []models.Notification
	require.NoError(t, e.db.Where("user_id = ? AND type = ?", userID, kind).Find(&rows).Error)
	return rows
}

func (e *serviceEnv) connectionRows(t *testing.T, a, b string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, e.db.Model(&models.Connection{}).
		Where("(user_id = ? AND connected_user_id = ?) OR (user_id = ? AND connected_user_id = ?)", a, b, b, a).
		Count(&count).Error)
	return count
}

func withUsername(username string) func(*models.User) {
	return func(u *models.User) {
		u.Username = &username
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

var bg = context.Background()

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

func (e *serviceEnv) lastToken(t *testing.T, to string) string {
	t.Helper()

	messages := e.mailer.SentTo(to)
	require.NotEmpty(t, messages, "no mail sent to %s", to)
	match := tokenPattern.FindStringSubmatch(messages[len(messages)-1].Body)
	require.Len(t, match, 2, "no token link in mail to %s", to)
	return match[1]
}
