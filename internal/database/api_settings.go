package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/introhub/internal/models"
)

// LoadAPISettings returns the stored settings row, falling back to an empty
// record when the row has not been seeded yet.
func LoadAPISettings(ctx context.Context, db *gorm.DB) (*models.APISettings, error) {
	if db == nil {
		return nil, fmt.Errorf("api settings: db is nil")
	}

	var settings models.APISettings
	err := db.WithContext(ctx).Take(&settings, "id = ?", models.APISettingsID).Error
	if err == nil {
		return &settings, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.APISettings{ID: models.APISettingsID}, nil
	}
	return nil, fmt.Errorf("api settings: load: %w", err)
}

// SaveAPISettings upserts the single settings row.
func SaveAPISettings(ctx context.Context, db *gorm.DB, settings *models.APISettings) error {
	if db == nil {
		return fmt.Errorf("api settings: db is nil")
	}
	if settings == nil {
		return fmt.Errorf("api settings: settings are required")
	}

	settings.ID = models.APISettingsID
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"site_name",
			"public_base_url",
			"email_from_name",
			"email_from_address",
			"support_email",
			"linkedin_client_id",
			"linkedin_client_secret",
			"linkedin_redirect_url",
			"updated_by",
			"updated_at",
		}),
	}).Create(settings).Error
	if err != nil {
		return fmt.Errorf("api settings: save: %w", err)
	}
	return nil
}
