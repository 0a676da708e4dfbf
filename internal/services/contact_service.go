package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/models"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
)

// AddContactInput describes a new address-book entry.
type AddContactInput struct {
	OwnerID    string
	Name       string
	Email      string
	Phone      string
	Notes      string
	DegreeType models.DegreeType
}

// ContactDTO is the API view of an address-book entry.
type ContactDTO struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	DegreeType  models.DegreeType `json:"degree_type"`
	ContactUser *UserSummary      `json:"contact_user,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ContactService manages a user's private address book.
type ContactService struct {
	db *gorm.DB
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB) (*ContactService, error) {
	if db == nil {
		return nil, errors.New("contact service: db is required")
	}
	return &ContactService{db: db}, nil
}

// Add stores a contact, linking it to a registered user with the same email.
func (s *ContactService) Add(ctx context.Context, input AddContactInput) (*ContactDTO, error) {
	ctx = ensureContext(ctx)
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normaliseEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	if input.DegreeType == "" {
		input.DegreeType = models.DegreeFirst
	}
	if !input.DegreeType.Valid() {
		return nil, apperrors.NewBadRequest("degree_type must be FIRST_DEGREE or SECOND_DEGREE")
	}
	if input.Name == "" && input.Email == "" {
		return nil, apperrors.NewBadRequest("a name or email is required")
	}

	contact := models.Contact{
		OwnerID:    input.OwnerID,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Notes:      strings.TrimSpace(input.Notes),
		DegreeType: input.DegreeType,
	}

	if input.Email != "" {
		var user models.User
		err := s.db.WithContext(ctx).Where("email = ?", input.Email).Take(&user).Error
		switch {
		case err == nil:
			if user.ID == input.OwnerID {
				return nil, apperrors.NewBadRequest("You cannot add yourself as a contact")
			}
			id := user.ID
			contact.ContactUserID = &id
			contact.ContactUser = &user
			if contact.Name == "" {
				contact.Name = user.DisplayName()
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("contact service: lookup user: %w", err)
		}
	}
	if contact.Name == "" {
		contact.Name = input.Email
	}

	if err := s.db.WithContext(ctx).Omit("ContactUser", "Owner").Create(&contact).Error; err != nil {
		return nil, fmt.Errorf("contact service: create contact: %w", err)
	}
	return mapContact(contact), nil
}

// List returns the owner's contacts, optionally filtered by degree.
func (s *ContactService) List(ctx context.Context, ownerID string, degree models.DegreeType) ([]ContactDTO, error) {
	ctx = ensureContext(ctx)
	query := s.db.WithContext(ctx).Preload("ContactUser").Where("owner_id = ?", ownerID)
	if degree != "" {
		if !degree.Valid() {
			return nil, apperrors.NewBadRequest("degree must be FIRST_DEGREE or SECOND_DEGREE")
		}
		query = query.Where("degree_type = ?", degree)
	}

	var rows []models.Contact
	if err := query.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("contact service: list contacts: %w", err)
	}
	items := make([]ContactDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, *mapContact(row))
	}
	return items, nil
}

// Delete removes one of the owner's contacts.
func (s *ContactService) Delete(ctx context.Context, ownerID, contactID string) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND owner_id = ?", contactID, ownerID).
		Delete(&models.Contact{})
	if result.Error != nil {
		return fmt.Errorf("contact service: delete contact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Contact not found")
	}
	return nil
}

func mapContact(row models.Contact) *ContactDTO {
	return &ContactDTO{
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone,
		Notes:       row.Notes,
		DegreeType:  row.DegreeType,
		ContactUser: summarizeUser(row.ContactUser),
		CreatedAt:   row.CreatedAt,
	}
}
