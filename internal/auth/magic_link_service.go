package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/pkg/crypto"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/logger"
	pkgmail "github.com/charlesng35/introhub/pkg/mail"
	"github.com/charlesng35/introhub/pkg/metrics"
)

const (
	// DefaultMagicLinkTTL bounds how long an emailed sign-in link stays valid.
	DefaultMagicLinkTTL     = 15 * time.Minute
	defaultMagicTokenLength = 32
)

// ErrMagicLinkInvalid is returned for unknown, expired or already used links.
var ErrMagicLinkInvalid = apperrors.NewNotFound("This sign-in link is invalid or has expired")

// LinkMailer renders and delivers the sign-in email.
type LinkMailer interface {
	Deliver(ctx context.Context, tmpl emails.Template, to string, data emails.Data) error
	Link(ctx context.Context, path string) string
}

// MagicLinkConfig controls token lifetime and length.
type MagicLinkConfig struct {
	TTL         time.Duration
	TokenLength int
	Clock       func() time.Time
}

// Session is the outcome of a successful sign-in.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *models.User
}

// MagicLinkService implements passwordless email sign-in.
type MagicLinkService struct {
	db     *gorm.DB
	jwt    *JWTService
	mailer LinkMailer
	ttl    time.Duration
	length int
	now    func() time.Time
	log    *zap.Logger
}

// NewMagicLinkService constructs a MagicLinkService. mailer may be nil, in
// which case links are only logged at debug level.
func NewMagicLinkService(db *gorm.DB, jwt *JWTService, mailer LinkMailer, cfg MagicLinkConfig) (*MagicLinkService, error) {
	if db == nil {
		return nil, errors.New("magic link: db is required")
	}
	if jwt == nil {
		return nil, errors.New("magic link: jwt service is required")
	}

	service := &MagicLinkService{
		db:     db,
		jwt:    jwt,
		mailer: mailer,
		ttl:    cfg.TTL,
		length: cfg.TokenLength,
		now:    cfg.Clock,
		log:    logger.WithModule("auth"),
	}
	if service.ttl <= 0 {
		service.ttl = DefaultMagicLinkTTL
	}
	if service.length <= 0 {
		service.length = defaultMagicTokenLength
	}
	if service.now == nil {
		service.now = time.Now
	}
	return service, nil
}

// Request issues a sign-in link for email, creating the account on first use.
// The link is never returned to the caller.
func (s *MagicLinkService) Request(ctx context.Context, email string) error {
	address, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return apperrors.NewBadRequest("a valid email address is required")
	}
	email = strings.ToLower(address.Address)

	token, err := crypto.GenerateToken(s.length)
	if err != nil {
		return fmt.Errorf("magic link: generate token: %w", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).Take(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Email: &email, UserType: models.UserTypeReferee}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("magic link: create user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("magic link: load user: %w", err)
		}

		record := models.MagicLinkToken{
			UserID:    user.ID,
			Email:     email,
			TokenHash: crypto.HashToken(token),
			ExpiresAt: s.now().Add(s.ttl),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("magic link: store token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.AuthAttempts.WithLabelValues("issued").Inc()

	if s.mailer == nil {
		s.log.Debug("magic link issued without mailer", zap.String("email", email))
		return nil
	}
	err = s.mailer.Deliver(ctx, emails.TemplateMagicLink, email, emails.Data{
		RecipientName: user.DisplayName(),
		Link:          s.mailer.Link(ctx, "/auth/verify?token="+token),
	})
	switch {
	case err == nil:
	case errors.Is(err, pkgmail.ErrSMTPDisabled):
		s.log.Debug("smtp disabled, magic link not delivered", zap.String("email", email))
	default:
		s.log.Warn("magic link delivery failed", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// Consume redeems a sign-in link exactly once and issues a session token.
func (s *MagicLinkService) Consume(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrMagicLinkInvalid
	}

	now := s.now()
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.MagicLinkToken
		if err := tx.Where("token_hash = ?", crypto.HashToken(token)).Take(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMagicLinkInvalid
			}
			return fmt.Errorf("magic link: load token: %w", err)
		}
		if record.UsedAt != nil || !record.ExpiresAt.After(now) {
			return ErrMagicLinkInvalid
		}

		result := tx.Model(&models.MagicLinkToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now.UTC())
		if result.Error != nil {
			return fmt.Errorf("magic link: mark used: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrMagicLinkInvalid
		}

		if err := tx.First(&user, "id = ?", record.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMagicLinkInvalid
			}
			return fmt.Errorf("magic link: load user: %w", err)
		}
		loginAt := now.UTC()
		if err := tx.Model(&user).Updates(map[string]any{
			"last_login_at":  loginAt,
			"is_placeholder": false,
		}).Error; err != nil {
			return fmt.Errorf("magic link: update user: %w", err)
		}
		user.LastLoginAt = &loginAt
		user.IsPlaceholder = false
		return nil
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:   user.ID,
		UserType: string(user.UserType),
		Email:    user.EmailAddress(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()

	return &Session{
		AccessToken: accessToken,
		ExpiresAt:   now.Add(s.jwt.TTL()),
		User:        &user,
	}, nil
}
