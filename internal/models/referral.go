package models

import "time"

// ReferralStatus is the lifecycle state of a three-party referral.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "PENDING"
	ReferralApproved ReferralStatus = "APPROVED"
	ReferralDenied   ReferralStatus = "DENIED"
)

// Referral records that RefereeID wants an introduction to ReferralID, vetted
// through the FirstDegreeID intermediary. APPROVED and DENIED are terminal.
type Referral struct {
	BaseModel

	RefereeID      string         `gorm:"type:uuid;not null;index" json:"referee_id"`
	FirstDegreeID  string         `gorm:"type:uuid;not null;index" json:"first_degree_id"`
	ReferralID     string         `gorm:"column:referral_id;type:uuid;not null;index" json:"referral_id"`
	Note           string         `gorm:"type:text" json:"note,omitempty"`
	Status         ReferralStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	TokenHash      string         `gorm:"size:64;index" json:"-"`
	TokenExpiresAt *time.Time     `json:"-"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
	DeniedAt       *time.Time     `json:"denied_at,omitempty"`

	Referee      *User `gorm:"foreignKey:RefereeID;constraint:OnDelete:CASCADE" json:"referee,omitempty"`
	FirstDegree  *User `gorm:"foreignKey:FirstDegreeID;constraint:OnDelete:CASCADE" json:"first_degree,omitempty"`
	ReferralUser *User `gorm:"foreignKey:ReferralID;constraint:OnDelete:CASCADE" json:"referral,omitempty"`
}
