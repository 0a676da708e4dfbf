package services

import (
	"context"
	"strings"

	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/models"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
	defaultTokenSize = 32
)

// EmailNotifier renders and sends best-effort transactional emails.
type EmailNotifier interface {
	Notify(ctx context.Context, tmpl emails.Template, to string, data emails.Data)
	Link(ctx context.Context, path string) string
}

// ResponseAction is the decision a participant submits for a workflow record.
type ResponseAction string

const (
	ActionAccept  ResponseAction = "accept"
	ActionDecline ResponseAction = "decline"
)

// ParseResponseAction normalises user supplied actions, accepting the
// approve/deny wording used by the referral emails.
func ParseResponseAction(raw string) (ResponseAction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accept", "approve", "approved", "accepted":
		return ActionAccept, nil
	case "decline", "deny", "denied", "reject", "declined":
		return ActionDecline, nil
	default:
		return "", apperrors.NewBadRequest("action must be accept or decline")
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func stringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func displayNameOr(user *models.User, fallback string) string {
	if name := user.DisplayName(); name != "" {
		return name
	}
	return fallback
}

func profilePath(user *models.User) string {
	if user == nil {
		return ""
	}
	if username := user.UsernameValue(); username != "" {
		return "/profile/" + username
	}
	return "/users/" + user.ID
}
