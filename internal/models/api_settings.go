package models

import "time"

// APISettingsID is the primary key of the single APISettings row.
const APISettingsID = "default"

// APISettings persists installation-wide integration settings managed from
// the admin back-office. Exactly one row exists.
type APISettings struct {
	ID string `gorm:"primaryKey;size:32" json:"-"`

	SiteName         string `gorm:"size:128" json:"site_name"`
	PublicBaseURL    string `gorm:"type:text" json:"public_base_url"`
	EmailFromName    string `gorm:"size:128" json:"email_from_name"`
	EmailFromAddress string `gorm:"size:255" json:"email_from_address"`
	SupportEmail     string `gorm:"size:255" json:"support_email"`

	LinkedInClientID     string `gorm:"column:linkedin_client_id;size:255" json:"linkedin_client_id"`
	LinkedInClientSecret string `gorm:"column:linkedin_client_secret;type:text" json:"-"`
	LinkedInRedirectURL  string `gorm:"column:linkedin_redirect_url;type:text" json:"linkedin_redirect_url"`

	UpdatedBy *string   `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the single-row table name stable.
func (APISettings) TableName() string {
	return "api_settings"
}
