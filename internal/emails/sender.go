package emails

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/mail"
	"github.com/charlesng35/introhub/pkg/metrics"
)

const defaultSiteName = "IntroHub"

// SettingsSource exposes the installation-wide settings used for branding.
type SettingsSource interface {
	Current(ctx context.Context) (*models.APISettings, error)
}

// Option customises the Sender.
type Option func(*Sender)

// WithBaseURL sets the fallback public URL used when settings carry none.
func WithBaseURL(url string) Option {
	return func(s *Sender) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithSettings wires the settings source used for site name, sender and base URL.
func WithSettings(source SettingsSource) Option {
	return func(s *Sender) {
		s.settings = source
	}
}

// Sender renders templates and hands the result to a mail.Mailer.
type Sender struct {
	mailer   mail.Mailer
	settings SettingsSource
	baseURL  string
	log      *zap.Logger
}

// NewSender constructs a Sender. A nil mailer turns every delivery into a no-op.
func NewSender(mailer mail.Mailer, opts ...Option) *Sender {
	sender := &Sender{
		mailer: mailer,
		log:    logger.WithModule("emails"),
	}
	for _, opt := range opts {
		opt(sender)
	}
	return sender
}

// Deliver renders the template and sends it, returning delivery errors.
// mail.ErrSMTPDisabled is reported to the caller unchanged.
func (s *Sender) Deliver(ctx context.Context, tmpl Template, to string, data Data) error {
	to = strings.TrimSpace(to)
	if s == nil || s.mailer == nil || to == "" {
		metrics.EmailDeliveries.WithLabelValues(string(tmpl), "skipped").Inc()
		return mail.ErrSMTPDisabled
	}

	settings := s.currentSettings(ctx)
	if data.SiteName == "" {
		data.SiteName = siteName(settings)
	}

	msg, err := render(tmpl, data)
	if err != nil {
		metrics.EmailDeliveries.WithLabelValues(string(tmpl), "failed").Inc()
		return err
	}
	msg.To = []string{to}
	msg.From = fromAddress(settings)

	if err := s.mailer.Send(ctx, msg); err != nil {
		result := "failed"
		if errors.Is(err, mail.ErrSMTPDisabled) {
			result = "skipped"
		}
		metrics.EmailDeliveries.WithLabelValues(string(tmpl), result).Inc()
		return err
	}

	metrics.EmailDeliveries.WithLabelValues(string(tmpl), "sent").Inc()
	return nil
}

// Notify delivers the template and swallows failures after logging them.
func (s *Sender) Notify(ctx context.Context, tmpl Template, to string, data Data) {
	err := s.Deliver(ctx, tmpl, to, data)
	if err == nil || errors.Is(err, mail.ErrSMTPDisabled) {
		return
	}
	s.log.Warn("email delivery failed",
		zap.String("template", string(tmpl)),
		zap.String("to", to),
		zap.Error(err),
	)
}

// Link builds an absolute URL for the given application path.
func (s *Sender) Link(ctx context.Context, path string) string {
	base := ""
	if s != nil {
		if settings := s.currentSettings(ctx); settings != nil {
			base = strings.TrimRight(strings.TrimSpace(settings.PublicBaseURL), "/")
		}
		if base == "" {
			base = s.baseURL
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (s *Sender) currentSettings(ctx context.Context) *models.APISettings {
	if s.settings == nil {
		return nil
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		s.log.Warn("load api settings for email", zap.Error(err))
		return nil
	}
	return settings
}

func render(tmpl Template, data Data) (mail.Message, error) {
	def, ok := registry[tmpl]
	if !ok {
		return mail.Message{}, fmt.Errorf("emails: unknown template %q", tmpl)
	}

	var subject, text, html bytes.Buffer
	if err := def.subject.Execute(&subject, data); err != nil {
		return mail.Message{}, fmt.Errorf("emails: render %s subject: %w", tmpl, err)
	}
	if err := def.text.Execute(&text, data); err != nil {
		return mail.Message{}, fmt.Errorf("emails: render %s text: %w", tmpl, err)
	}
	if err := def.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return mail.Message{}, fmt.Errorf("emails: render %s html: %w", tmpl, err)
	}

	return mail.Message{
		Subject: strings.TrimSpace(subject.String()),
		Body:    text.String(),
		HTML:    html.String(),
	}, nil
}

func siteName(settings *models.APISettings) string {
	if settings != nil && strings.TrimSpace(settings.SiteName) != "" {
		return strings.TrimSpace(settings.SiteName)
	}
	return defaultSiteName
}

func fromAddress(settings *models.APISettings) string {
	if settings == nil || strings.TrimSpace(settings.EmailFromAddress) == "" {
		return ""
	}
	address := strings.TrimSpace(settings.EmailFromAddress)
	if name := strings.TrimSpace(settings.EmailFromName); name != "" {
		return fmt.Sprintf("%s <%s>", name, address)
	}
	return address
}
