package services

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/charlesng35/introhub/internal/models"
)

// UserSummary is the public, contact-free view of a user embedded in workflow payloads.
type UserSummary struct {
	ID            string          `json:"id"`
	Username      string          `json:"username,omitempty"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	DisplayName   string          `json:"display_name"`
	Headline      string          `json:"headline,omitempty"`
	Company       string          `json:"company,omitempty"`
	AvatarURL     string          `json:"avatar_url,omitempty"`
	UserType      models.UserType `json:"user_type"`
	IsPlaceholder bool            `json:"is_placeholder"`
}

// ContactCard extends UserSummary with contact details, revealed only to
// participants once a workflow grants it.
type ContactCard struct {
	UserSummary
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func summarizeUser(user *models.User) *UserSummary {
	if user == nil || user.ID == "" {
		return nil
	}
	return &UserSummary{
		ID:            user.ID,
		Username:      user.UsernameValue(),
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		DisplayName:   user.DisplayName(),
		Headline:      user.Headline,
		Company:       user.Company,
		AvatarURL:     user.AvatarURL,
		UserType:      user.UserType,
		IsPlaceholder: user.IsPlaceholder,
	}
}

func contactCard(user *models.User) *ContactCard {
	summary := summarizeUser(user)
	if summary == nil {
		return nil
	}
	return &ContactCard{
		UserSummary: *summary,
		Email:       user.EmailAddress(),
		Phone:       user.Phone,
	}
}

func encodeJSON(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func decodeStringMap(data datatypes.JSON) map[string]string {
	if len(data) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}
