package models

import (
	"fmt"
	"time"
)

// ConnectionRequestStatus is the lifecycle state of a connection request.
type ConnectionRequestStatus string

const (
	ConnectionRequestPending  ConnectionRequestStatus = "PENDING"
	ConnectionRequestAccepted ConnectionRequestStatus = "ACCEPTED"
	ConnectionRequestDeclined ConnectionRequestStatus = "DECLINED"
)

// ConnectionRequest proposes a connection from FromUserID to ToUserID.
// PendingKey is populated only while the request is pending. It is built from
// the unordered pair, so its unique index allows a single pending request
// between two users in either direction while keeping history.
type ConnectionRequest struct {
	BaseModel

	FromUserID     string                  `gorm:"type:uuid;not null;index" json:"from_user_id"`
	ToUserID       string                  `gorm:"type:uuid;not null;index" json:"to_user_id"`
	Note           string                  `gorm:"type:text" json:"note,omitempty"`
	Status         ConnectionRequestStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	PendingKey     *string                 `gorm:"uniqueIndex;size:80" json:"-"`
	TokenHash      string                  `gorm:"size:64;index" json:"-"`
	TokenExpiresAt *time.Time              `json:"-"`
	RespondedAt    *time.Time              `json:"responded_at,omitempty"`

	FromUser *User `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"from_user,omitempty"`
	ToUser   *User `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"to_user,omitempty"`
}

// PendingRequestKey builds the PendingKey value for a pair of users. The key
// is the same whichever side sends the request.
func PendingRequestKey(fromUserID, toUserID string) *string {
	low, high := fromUserID, toUserID
	if high < low {
		low, high = high, low
	}
	key := fmt.Sprintf("%s:%s", low, high)
	return &key
}
