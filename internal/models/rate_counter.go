package models

import "time"

// RateCounter is a fixed-window request counter shared by every API instance.
type RateCounter struct {
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
