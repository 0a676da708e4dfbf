package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Contact{},
		&models.ConnectionRequest{},
		&models.Connection{},
		&models.Referral{},
		&models.PendingIntroduction{},
		&models.Notification{},
		&models.MagicLinkToken{},
		&models.APISettings{},
		&models.RateCounter{},
	)
}

// SeedData ensures the single API settings row exists.
func SeedData(db *gorm.DB) error {
	settings := models.APISettings{
		ID:            models.APISettingsID,
		SiteName:      "IntroHub",
		EmailFromName: "IntroHub",
	}
	return db.Where(models.APISettings{ID: settings.ID}).Attrs(settings).FirstOrCreate(&models.APISettings{}).Error
}
