package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/app"
	testutil "github.com/charlesng35/introhub/internal/database/testutil"
	"github.com/charlesng35/introhub/internal/models"
)

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := "root@example.com"
	require.NoError(t, db.Create(&models.User{Email: &email, FirstName: "Root", UserType: models.UserTypeAdmin}).Error)

	cfg := &app.Config{
		Server: app.ServerConfig{
			PublicURL:      "https://intro.example.com",
			AllowedOrigins: []string{"https://app.example.com"},
			Cookie:         app.CookieConfig{Secure: true},
			RateLimit:      app.RateLimitConfig{Enabled: true, Requests: 10, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT:       app.JWTSettings{Secret: "0123456789abcdef0123456789abcdef0123456789abcdef", TTL: 24 * time.Hour},
			MagicLink: app.MagicLinkSettings{TTL: 15 * time.Minute},
		},
		Email: app.EmailConfig{SMTP: app.SMTPConfig{Enabled: true, Host: "smtp.example.com", UseTLS: true}},
	}

	svc := NewAuditService(db, cfg)
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 8)
	require.Equal(t, 8, result.Summary[string(StatusPass)])
}

func TestAuditServiceFlagsWeakDeployment(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{PublicURL: "https://intro.example.com"},
		Auth: app.AuthConfig{
			JWT:       app.JWTSettings{Secret: "short", TTL: 90 * 24 * time.Hour},
			MagicLink: app.MagicLinkSettings{TTL: 24 * time.Hour},
		},
	}

	result := NewAuditService(db, cfg).Run(context.Background())

	require.Equal(t, StatusFail, findCheck(t, result, "admin_present").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "email_delivery").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "magic_link_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_cookie_secure").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "rate_limit").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "cors_origins").Status)
	require.Zero(t, result.Summary[string(StatusPass)])
}

func TestAuditServiceWithoutDependencies(t *testing.T) {
	result := NewAuditService(nil, nil).Run(context.Background())
	require.Len(t, result.Checks, 2)
	require.Equal(t, 2, result.Summary[string(StatusWarn)])
}
