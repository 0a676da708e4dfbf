package models

import "time"

// IntroductionStatus is the derived state of a mutual opt-in introduction.
type IntroductionStatus string

const (
	IntroductionPending         IntroductionStatus = "pending"
	IntroductionPersonAAccepted IntroductionStatus = "personA_accepted"
	IntroductionPersonBAccepted IntroductionStatus = "personB_accepted"
	IntroductionBothAccepted    IntroductionStatus = "both_accepted"
	IntroductionDeclined        IntroductionStatus = "declined"
)

// Terminal reports whether no further responses are accepted.
func (s IntroductionStatus) Terminal() bool {
	return s == IntroductionBothAccepted || s == IntroductionDeclined
}

// PendingIntroduction is a two-party mutual acceptance record. Either party may
// be a registered user or a bare email address that is resolved on response.
type PendingIntroduction struct {
	BaseModel

	IntroducerID string `gorm:"type:uuid;not null;index" json:"introducer_id"`
	Note         string `gorm:"type:text" json:"note,omitempty"`

	PersonAUserID   *string `gorm:"type:uuid;index" json:"person_a_user_id,omitempty"`
	PersonAEmail    string  `gorm:"size:255;index" json:"person_a_email,omitempty"`
	PersonAName     string  `gorm:"size:255" json:"person_a_name,omitempty"`
	PersonAAccepted bool    `gorm:"default:false" json:"person_a_accepted"`

	PersonBUserID   *string `gorm:"type:uuid;index" json:"person_b_user_id,omitempty"`
	PersonBEmail    string  `gorm:"size:255;index" json:"person_b_email,omitempty"`
	PersonBName     string  `gorm:"size:255" json:"person_b_name,omitempty"`
	PersonBAccepted bool    `gorm:"default:false" json:"person_b_accepted"`

	Status     IntroductionStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	AcceptedAt *time.Time         `json:"accepted_at,omitempty"`
	DeclinedAt *time.Time         `json:"declined_at,omitempty"`

	Introducer *User `gorm:"foreignKey:IntroducerID;constraint:OnDelete:CASCADE" json:"introducer,omitempty"`
}
