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
	"github.com/charlesng35/introhub/pkg/validator"
)

// ProfileDTO is the business card view of a user. Contact details are only
// populated for the user themselves and their connections.
type ProfileDTO struct {
	ContactCard
	Bio              string            `json:"bio,omitempty"`
	Location         string            `json:"location,omitempty"`
	SocialLinks      map[string]string `json:"social_links,omitempty"`
	StatementSummary string            `json:"statement_summary,omitempty"`
	LastLoginAt      *time.Time        `json:"last_login_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// UpdateProfileInput enumerates mutable profile attributes. Nil fields are left untouched.
type UpdateProfileInput struct {
	Username         *string
	FirstName        *string
	LastName         *string
	Phone            *string
	Headline         *string
	Bio              *string
	Company          *string
	Location         *string
	AvatarURL        *string
	StatementSummary *string
	SocialLinks      map[string]string
}

// ListUsersOptions controls pagination for the admin user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Query    string
	UserType models.UserType
}

// UserService manages profiles and the admin user lifecycle.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID loads a user record.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := loadUser(s.db.WithContext(ensureContext(ctx)), strings.TrimSpace(id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetMe returns the caller's full profile.
func (s *UserService) GetMe(ctx context.Context, userID string) (*ProfileDTO, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapProfile(user, true), nil
}

// GetPublicProfile returns the business card for username. Placeholder users
// have no public page.
func (s *UserService) GetPublicProfile(ctx context.Context, username, viewerID string) (*ProfileDTO, error) {
	ctx = ensureContext(ctx)
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, errUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ? AND is_placeholder = ?", username, false).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("user service: load profile: %w", err)
	}

	reveal := viewerID != "" && viewerID == user.ID
	if !reveal && viewerID != "" {
		if reveal, err = connectionExists(s.db.WithContext(ctx), viewerID, user.ID); err != nil {
			return nil, err
		}
	}
	return mapProfile(&user, reveal), nil
}

// UpdateProfile persists the caller's profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*ProfileDTO, error) {
	ctx = ensureContext(ctx)
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*input.Username))
		switch {
		case username == "":
			updates["username"] = nil
		case !validator.IsUsername(username):
			return nil, apperrors.NewBadRequest("username must be 3-32 lowercase letters, digits, '-' or '_'")
		case username != user.UsernameValue():
			updates["username"] = username
		}
	}
	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = strings.TrimSpace(*value)
		}
	}
	setString("first_name", input.FirstName)
	setString("last_name", input.LastName)
	setString("phone", input.Phone)
	setString("headline", input.Headline)
	setString("bio", input.Bio)
	setString("company", input.Company)
	setString("location", input.Location)
	setString("avatar_url", input.AvatarURL)
	setString("statement_summary", input.StatementSummary)
	if input.SocialLinks != nil {
		links, err := encodeJSON(input.SocialLinks)
		if err != nil {
			return nil, apperrors.NewBadRequest("social_links must be a map of strings")
		}
		updates["social_links"] = links
	}
	if len(updates) == 0 {
		return mapProfile(user, true), nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("That username is already taken")
		}
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}
	return s.GetMe(ctx, userID)
}

// Search finds registered users by name, username or company.
func (s *UserService) Search(ctx context.Context, query, excludeID string, limit int) ([]UserSummary, error) {
	ctx = ensureContext(ctx)
	query = strings.ToLower(strings.TrimSpace(query))
	if len(query) < 2 {
		return []UserSummary{}, nil
	}

	pattern := "%" + query + "%"
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("is_placeholder = ?", false).
		Where("id <> ?", excludeID).
		Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(company) LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("first_name ASC, last_name ASC").
		Limit(clampLimit(limit)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("user service: search users: %w", err)
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, *summarizeUser(&users[i]))
	}
	return out, nil
}

// List retrieves users for the admin back-office.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]ProfileDTO, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.UserType != "" {
		query = query.Where("user_type = ?", opts.UserType)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	out := make([]ProfileDTO, 0, len(users))
	for i := range users {
		out = append(out, *mapProfile(&users[i], true))
	}
	return out, total, nil
}

// ChangeType updates a user's role. Admins cannot change their own type.
func (s *UserService) ChangeType(ctx context.Context, actorID, userID string, userType models.UserType) (*ProfileDTO, error) {
	ctx = ensureContext(ctx)
	if !userType.Valid() {
		return nil, apperrors.NewBadRequest("unknown user type")
	}
	if actorID == userID {
		return nil, apperrors.NewBadRequest("You cannot change your own user type")
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("user_type", userType).Error; err != nil {
		return nil, fmt.Errorf("user service: change user type: %w", err)
	}
	user.UserType = userType
	return mapProfile(user, true), nil
}

// Delete removes a user together with every dependent row.
func (s *UserService) Delete(ctx context.Context, actorID, userID string) error {
	ctx = ensureContext(ctx)
	if actorID == userID {
		return apperrors.NewBadRequest("You cannot delete your own account")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := loadUser(tx, userID, &user); err != nil {
			return err
		}

		steps := []struct {
			name string
			run  func() error
		}{
			{"notifications", func() error {
				return tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error
			}},
			{"notification senders", func() error {
				return tx.Model(&models.Notification{}).Where("from_user_id = ?", userID).Update("from_user_id", nil).Error
			}},
			{"connections", func() error {
				return tx.Where("user_id = ? OR connected_user_id = ?", userID, userID).Delete(&models.Connection{}).Error
			}},
			{"connection requests", func() error {
				return tx.Where("from_user_id = ? OR to_user_id = ?", userID, userID).Delete(&models.ConnectionRequest{}).Error
			}},
			{"referrals", func() error {
				return tx.Where("referee_id = ? OR first_degree_id = ? OR referral_id = ?", userID, userID, userID).Delete(&models.Referral{}).Error
			}},
			{"introductions", func() error {
				return tx.Where("introducer_id = ?", userID).Delete(&models.PendingIntroduction{}).Error
			}},
			{"introduction party a", func() error {
				return tx.Model(&models.PendingIntroduction{}).Where("person_a_user_id = ?", userID).Update("person_a_user_id", nil).Error
			}},
			{"introduction party b", func() error {
				return tx.Model(&models.PendingIntroduction{}).Where("person_b_user_id = ?", userID).Update("person_b_user_id", nil).Error
			}},
			{"contacts", func() error {
				return tx.Where("owner_id = ?", userID).Delete(&models.Contact{}).Error
			}},
			{"contact links", func() error {
				return tx.Model(&models.Contact{}).Where("contact_user_id = ?", userID).Update("contact_user_id", nil).Error
			}},
			{"magic links", func() error {
				return tx.Where("user_id = ?", userID).Delete(&models.MagicLinkToken{}).Error
			}},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("user service: delete %s: %w", step.name, err)
			}
		}

		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
}

func mapProfile(user *models.User, reveal bool) *ProfileDTO {
	card := ContactCard{UserSummary: *summarizeUser(user)}
	if reveal {
		card.Email = user.EmailAddress()
		card.Phone = user.Phone
	}
	return &ProfileDTO{
		ContactCard:      card,
		Bio:              user.Bio,
		Location:         user.Location,
		SocialLinks:      decodeStringMap(user.SocialLinks),
		StatementSummary: user.StatementSummary,
		LastLoginAt:      user.LastLoginAt,
		CreatedAt:        user.CreatedAt,
	}
}
