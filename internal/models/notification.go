package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType is the closed set of inbox entry kinds.
type NotificationType string

const (
	NotificationConnectionRequest      NotificationType = "CONNECTION_REQUEST"
	NotificationConnectionAccepted     NotificationType = "CONNECTION_ACCEPTED"
	NotificationConnectionDeclined     NotificationType = "CONNECTION_DECLINED"
	NotificationReferralRequest        NotificationType = "REFERRAL_REQUEST"
	NotificationReferralApproved       NotificationType = "REFERRAL_APPROVED"
	NotificationReferralDenied         NotificationType = "REFERRAL_DENIED"
	NotificationIntroductionRequest    NotificationType = "INTRODUCTION_REQUEST"
	NotificationIntroductionPartial    NotificationType = "INTRODUCTION_PARTIAL"
	NotificationIntroductionAccepted   NotificationType = "INTRODUCTION_ACCEPTED"
	NotificationIntroductionSuccessful NotificationType = "INTRODUCTION_SUCCESSFUL"
	NotificationIntroductionDeclined   NotificationType = "INTRODUCTION_DECLINED"
	NotificationSystem                 NotificationType = "SYSTEM"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationConnectionRequest, NotificationConnectionAccepted, NotificationConnectionDeclined,
		NotificationReferralRequest, NotificationReferralApproved, NotificationReferralDenied,
		NotificationIntroductionRequest, NotificationIntroductionPartial, NotificationIntroductionAccepted,
		NotificationIntroductionSuccessful, NotificationIntroductionDeclined, NotificationSystem:
		return true
	default:
		return false
	}
}

// Notification represents an append-only in-app inbox entry for a user.
type Notification struct {
	BaseModel

	UserID     string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Type       NotificationType `gorm:"type:varchar(64);not null" json:"type"`
	Title      string           `gorm:"type:varchar(255);not null" json:"title"`
	Message    string           `gorm:"type:text" json:"message"`
	Link       string           `gorm:"type:text" json:"link,omitempty"`
	FromUserID *string          `gorm:"type:uuid;index" json:"from_user_id,omitempty"`
	Metadata   datatypes.JSON   `json:"metadata,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	User     *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	FromUser *User `gorm:"foreignKey:FromUserID;constraint:OnDelete:SET NULL" json:"from_user,omitempty"`
}
