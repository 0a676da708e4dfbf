package models

// Connection is one direction of a realised, symmetric relationship. Every row
// has a mirror (ConnectedUserID -> UserID) written in the same transaction.
type Connection struct {
	BaseModel

	UserID          string `gorm:"type:uuid;not null;uniqueIndex:idx_connection_pair" json:"user_id"`
	ConnectedUserID string `gorm:"type:uuid;not null;uniqueIndex:idx_connection_pair;index" json:"connected_user_id"`

	User          *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ConnectedUser *User `gorm:"foreignKey:ConnectedUserID;constraint:OnDelete:CASCADE" json:"connected_user,omitempty"`
}
