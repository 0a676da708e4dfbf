package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// UserType is the closed set of roles a user can hold in the referral network.
type UserType string

const (
	UserTypeAdmin       UserType = "ADMIN"
	UserTypeReferee     UserType = "REFEREE"
	UserTypeFirstDegree UserType = "FIRST_DEGREE"
	UserTypeReferral    UserType = "REFERRAL"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAdmin, UserTypeReferee, UserTypeFirstDegree, UserTypeReferral:
		return true
	default:
		return false
	}
}

// ParseUserType normalises raw input into a UserType.
func ParseUserType(raw string) (UserType, error) {
	t := UserType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown user type %q", raw)
	}
	return t, nil
}

// User is a member of the network. Placeholder users are materialised by a
// referral chain before the person has ever signed in.
type User struct {
	BaseModel

	Email    *string `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	Phone    string  `gorm:"size:64" json:"phone,omitempty"`
	Username *string `gorm:"uniqueIndex;size:64" json:"username,omitempty"`

	FirstName string   `gorm:"size:128" json:"first_name"`
	LastName  string   `gorm:"size:128" json:"last_name"`
	UserType  UserType `gorm:"type:varchar(32);not null;default:'REFEREE';index" json:"user_type"`

	Headline         string         `gorm:"size:255" json:"headline,omitempty"`
	Bio              string         `gorm:"type:text" json:"bio,omitempty"`
	Company          string         `gorm:"size:255" json:"company,omitempty"`
	Location         string         `gorm:"size:255" json:"location,omitempty"`
	AvatarURL        string         `gorm:"type:text" json:"avatar_url,omitempty"`
	SocialLinks      datatypes.JSON `json:"social_links,omitempty"`
	StatementSummary string         `gorm:"type:text" json:"statement_summary,omitempty"`

	IsPlaceholder bool       `gorm:"default:false" json:"is_placeholder"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// DisplayName returns the best human readable label for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.EmailAddress()
}

// EmailAddress returns the email or an empty string for users without one.
func (u *User) EmailAddress() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

// UsernameValue returns the username or an empty string.
func (u *User) UsernameValue() string {
	if u == nil || u.Username == nil {
		return ""
	}
	return *u.Username
}
