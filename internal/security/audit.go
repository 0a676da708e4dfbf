package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/app"
	"github.com/charlesng35/introhub/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minSecretLength        = 32
	recommendedSecretBytes = 48
	maxSessionTTL          = 30 * 24 * time.Hour
	maxMagicLinkTTL        = time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService reviews the deployment for settings that weaken sign-in or
// expose contact details.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. A nil db or config downgrades
// the affected checks to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{db: db, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{s.checkAdminPresent(ctx)}
	if s.cfg == nil {
		checks = append(checks, Check{
			ID:          "configuration",
			Status:      StatusWarn,
			Message:     "Configuration not loaded; deployment settings were not reviewed.",
			Remediation: "Load configuration before running the security audit.",
		})
	} else {
		checks = append(checks,
			s.checkJWTSecret(),
			s.checkSessionTTL(),
			s.checkMagicLinkTTL(),
			s.checkSessionCookie(),
			s.checkEmailDelivery(),
			s.checkRateLimit(),
			s.checkAllowedOrigins(),
		)
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkAdminPresent(ctx context.Context) Check {
	const id = "admin_present"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable; unable to confirm an administrator exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("user_type = ?", models.UserTypeAdmin).
		Count(&count).Error; err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count administrators: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count == 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "No administrator account exists.",
			Remediation: "Promote a trusted user to ADMIN so settings and accounts can be managed.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Administrator present.", Details: map[string]any{"count": count}}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))

	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Set INTROHUB_AUTH_JWT_SECRET to a random value of at least 32 bytes.",
		}
	case length < minSecretLength:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < recommendedSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of INTROHUB_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkSessionTTL() Check {
	const id = "session_ttl"
	ttl := s.cfg.Auth.JWT.TTL
	switch {
	case ttl <= 0:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Session lifetime is not configured; the default duration applies.",
			Remediation: "Set INTROHUB_AUTH_JWT_ACCESS_TOKEN_TTL to control how long a sign-in lasts.",
		}
	case ttl > maxSessionTTL:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Session lifetime (%s) exceeds the recommended maximum (%s).", ttl, maxSessionTTL),
			Remediation: "Reduce the session lifetime to 30 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("Session lifetime is %s.", ttl), Details: map[string]any{"ttl": ttl.String()}}
	}
}

func (s *AuditService) checkMagicLinkTTL() Check {
	const id = "magic_link_ttl"
	ttl := s.cfg.Auth.MagicLink.TTL
	if ttl > maxMagicLinkTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Sign-in links stay valid for %s.", ttl),
			Remediation: "Keep sign-in links valid for an hour or less.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Sign-in links expire quickly."}
}

func (s *AuditService) checkSessionCookie() Check {
	const id = "session_cookie_secure"
	https := strings.HasPrefix(strings.ToLower(strings.TrimSpace(s.cfg.Server.PublicURL)), "https://")
	if https && !s.cfg.Server.Cookie.Secure {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "The site is served over HTTPS but the session cookie is not marked Secure.",
			Remediation: "Set INTROHUB_SERVER_COOKIE_SECURE=true.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Session cookie settings match the public URL."}
}

func (s *AuditService) checkEmailDelivery() Check {
	const id = "email_delivery"
	smtp := s.cfg.Email.SMTP
	switch {
	case !smtp.Enabled:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "SMTP is disabled; sign-in links cannot be delivered.",
			Remediation: "Configure email.smtp so users can receive sign-in and workflow links.",
		}
	case !smtp.UseTLS:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP delivery does not use TLS; sign-in links travel in clear text.",
			Remediation: "Enable email.smtp.use_tls.",
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: "SMTP delivery uses TLS."}
	}
}

func (s *AuditService) checkRateLimit() Check {
	const id = "rate_limit"
	limit := s.cfg.Server.RateLimit
	if !limit.Enabled || limit.Requests <= 0 || limit.Window <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Public token and sign-in endpoints are not rate limited.",
			Remediation: "Enable server.rate_limit to slow down link guessing.",
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Public endpoints allow %d requests per %s.", limit.Requests, limit.Window),
	}
}

func (s *AuditService) checkAllowedOrigins() Check {
	const id = "cors_origins"
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "CORS accepts any origin.",
			Remediation: "List the web client origins in server.allowed_origins.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "CORS is restricted.", Details: map[string]any{"origins": s.cfg.Server.AllowedOrigins}}
}
