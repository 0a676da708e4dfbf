package services

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/database"
	"github.com/charlesng35/introhub/internal/models"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
)

const defaultSettingsTTL = time.Minute

// UpdateSettingsInput enumerates the admin editable settings. Nil fields are left untouched.
type UpdateSettingsInput struct {
	SiteName             *string
	PublicBaseURL        *string
	EmailFromName        *string
	EmailFromAddress     *string
	SupportEmail         *string
	LinkedInClientID     *string
	LinkedInClientSecret *string
	LinkedInRedirectURL  *string
}

// SecretSealer encrypts secrets before they are stored.
type SecretSealer interface {
	Seal(value string) (string, error)
	Open(value string) (string, error)
}

// SettingsOption customises the SettingsService.
type SettingsOption func(*SettingsService)

// WithSettingsTTL overrides how long a loaded settings row is served from memory.
func WithSettingsTTL(ttl time.Duration) SettingsOption {
	return func(s *SettingsService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSettingsClock injects a custom time source.
func WithSettingsClock(clock func() time.Time) SettingsOption {
	return func(s *SettingsService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSecretSealer encrypts OAuth client secrets at rest.
func WithSecretSealer(sealer SecretSealer) SettingsOption {
	return func(s *SettingsService) {
		s.sealer = sealer
	}
}

// SettingsService serves the single APISettings row through a small TTL cache.
type SettingsService struct {
	db     *gorm.DB
	ttl    time.Duration
	now    func() time.Time
	sealer SecretSealer

	mu       sync.RWMutex
	cached   *models.APISettings
	loadedAt time.Time
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB, opts ...SettingsOption) (*SettingsService, error) {
	if db == nil {
		return nil, errors.New("settings service: db is required")
	}
	service := &SettingsService{
		db:  db,
		ttl: defaultSettingsTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Current returns a copy of the settings, reloading once the cache expires.
func (s *SettingsService) Current(ctx context.Context) (*models.APISettings, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.loadedAt) < s.ttl {
		copied := *s.cached
		s.mu.RUnlock()
		return &copied, nil
	}
	s.mu.RUnlock()

	settings, err := database.LoadAPISettings(ensureContext(ctx), s.db)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = settings
	s.loadedAt = s.now()
	s.mu.Unlock()

	copied := *settings
	return &copied, nil
}

// LinkedInClientSecret returns the decrypted OAuth client secret.
func (s *SettingsService) LinkedInClientSecret(ctx context.Context) (string, error) {
	settings, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if s.sealer == nil {
		return settings.LinkedInClientSecret, nil
	}
	secret, err := s.sealer.Open(settings.LinkedInClientSecret)
	if err != nil {
		return "", apperrors.Wrap(err, "open linkedin client secret")
	}
	return secret, nil
}

// Invalidate drops the cached row so the next Current call reloads it.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Update applies admin changes and invalidates the cache.
func (s *SettingsService) Update(ctx context.Context, actorID string, input UpdateSettingsInput) (*models.APISettings, error) {
	ctx = ensureContext(ctx)
	settings, err := database.LoadAPISettings(ctx, s.db)
	if err != nil {
		return nil, err
	}

	assign := func(dst *string, value *string) {
		if value != nil {
			*dst = strings.TrimSpace(*value)
		}
	}
	assign(&settings.SiteName, input.SiteName)
	assign(&settings.PublicBaseURL, input.PublicBaseURL)
	assign(&settings.EmailFromName, input.EmailFromName)
	assign(&settings.EmailFromAddress, input.EmailFromAddress)
	assign(&settings.SupportEmail, input.SupportEmail)
	assign(&settings.LinkedInClientID, input.LinkedInClientID)
	assign(&settings.LinkedInClientSecret, input.LinkedInClientSecret)
	assign(&settings.LinkedInRedirectURL, input.LinkedInRedirectURL)
	settings.PublicBaseURL = strings.TrimRight(settings.PublicBaseURL, "/")

	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if input.LinkedInClientSecret != nil && s.sealer != nil {
		sealed, err := s.sealer.Seal(settings.LinkedInClientSecret)
		if err != nil {
			return nil, apperrors.Wrap(err, "seal linkedin client secret")
		}
		settings.LinkedInClientSecret = sealed
	}
	if actorID != "" {
		settings.UpdatedBy = &actorID
	}
	settings.UpdatedAt = s.now().UTC()

	if err := database.SaveAPISettings(ctx, s.db, settings); err != nil {
		return nil, err
	}
	s.Invalidate()
	return s.Current(ctx)
}

func validateSettings(settings *models.APISettings) error {
	details := map[string]string{}
	for field, raw := range map[string]string{
		"public_base_url":       settings.PublicBaseURL,
		"linkedin_redirect_url": settings.LinkedInRedirectURL,
	} {
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			details[field] = "must be an absolute http(s) URL"
		}
	}
	for field, raw := range map[string]string{
		"email_from_address": settings.EmailFromAddress,
		"support_email":      settings.SupportEmail,
	} {
		if raw == "" {
			continue
		}
		if _, err := mail.ParseAddress(raw); err != nil {
			details[field] = "must be a valid email address"
		}
	}
	if len(details) == 0 {
		return nil
	}
	return apperrors.ErrBadRequest.WithDetails(details)
}
