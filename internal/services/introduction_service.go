package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/models"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/metrics"
)

// IntroductionParty names one side of an introduction, either by user id or by email.
type IntroductionParty struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// CreateIntroductionInput describes a new mutual opt-in introduction.
type CreateIntroductionInput struct {
	IntroducerID string
	PersonA      IntroductionParty
	PersonB      IntroductionParty
	Note         string
}

// IntroductionCaller identifies the responding party.
type IntroductionCaller struct {
	UserID string
	Email  string
}

// IntroductionPartyDTO is one side of an introduction as returned by the API.
type IntroductionPartyDTO struct {
	UserID   *string `json:"user_id,omitempty"`
	Name     string  `json:"name"`
	Email    string  `json:"email,omitempty"`
	Accepted bool    `json:"accepted"`
}

// IntroductionDTO is the API view of a pending introduction.
type IntroductionDTO struct {
	ID         string                    `json:"id"`
	Introducer *UserSummary              `json:"introducer,omitempty"`
	PersonA    IntroductionPartyDTO      `json:"person_a"`
	PersonB    IntroductionPartyDTO      `json:"person_b"`
	Note       string                    `json:"note,omitempty"`
	Status     models.IntroductionStatus `json:"status"`
	CreatedAt  time.Time                 `json:"created_at"`
	AcceptedAt *time.Time                `json:"accepted_at,omitempty"`
	DeclinedAt *time.Time                `json:"declined_at,omitempty"`
}

// IntroductionResult reports the outcome of a response.
type IntroductionResult struct {
	Introduction      *IntroductionDTO `json:"introduction"`
	ConnectionCreated bool             `json:"connection_created"`
}

// IntroductionOption customises the IntroductionService.
type IntroductionOption func(*IntroductionService)

// WithIntroductionClock injects a custom time source.
func WithIntroductionClock(clock func() time.Time) IntroductionOption {
	return func(s *IntroductionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// IntroductionService implements two-party mutual acceptance introductions.
type IntroductionService struct {
	db            *gorm.DB
	notifications *NotificationService
	emails        EmailNotifier
	now           func() time.Time
	log           *zap.Logger
}

// NewIntroductionService constructs an IntroductionService.
func NewIntroductionService(db *gorm.DB, notifications *NotificationService, mailer EmailNotifier, opts ...IntroductionOption) (*IntroductionService, error) {
	if db == nil {
		return nil, errors.New("introduction service: db is required")
	}
	service := &IntroductionService{
		db:            db,
		notifications: notifications,
		emails:        mailer,
		now:           time.Now,
		log:           logger.WithModule("introductions"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

type resolvedParty struct {
	userID *string
	email  string
	name   string
	user   *models.User
}

// Create records a new pending introduction and invites both parties.
func (s *IntroductionService) Create(ctx context.Context, input CreateIntroductionInput) (*IntroductionDTO, error) {
	ctx = ensureContext(ctx)
	introducerID := strings.TrimSpace(input.IntroducerID)
	if introducerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var (
		introducer models.User
		a, b       resolvedParty
		intro      models.PendingIntroduction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadUser(tx, introducerID, &introducer); err != nil {
			return err
		}
		var err error
		if a, err = resolveParty(tx, input.PersonA, "person_a"); err != nil {
			return err
		}
		if b, err = resolveParty(tx, input.PersonB, "person_b"); err != nil {
			return err
		}
		if sameParty(a, b) {
			return apperrors.NewBadRequest("person A and person B must be different people")
		}
		if (a.userID != nil && *a.userID == introducer.ID) || (b.userID != nil && *b.userID == introducer.ID) ||
			(introducer.EmailAddress() != "" && (a.email == introducer.EmailAddress() || b.email == introducer.EmailAddress())) {
			return apperrors.NewBadRequest("You cannot introduce yourself")
		}

		intro = models.PendingIntroduction{
			IntroducerID:  introducer.ID,
			Note:          strings.TrimSpace(input.Note),
			PersonAUserID: a.userID,
			PersonAEmail:  a.email,
			PersonAName:   a.name,
			PersonBUserID: b.userID,
			PersonBEmail:  b.email,
			PersonBName:   b.name,
			Status:        models.IntroductionPending,
		}
		if err := tx.Create(&intro).Error; err != nil {
			return fmt.Errorf("introduction service: create introduction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	intro.Introducer = &introducer
	metrics.WorkflowTransitions.WithLabelValues("introduction", string(models.IntroductionPending)).Inc()

	introducerName := displayNameOr(&introducer, "Someone")
	link := "/introductions/" + intro.ID
	var inputs []CreateNotificationInput
	for _, pair := range [][2]resolvedParty{{a, b}, {b, a}} {
		recipient, counterpart := pair[0], pair[1]
		if recipient.userID != nil {
			inputs = append(inputs, CreateNotificationInput{
				UserID:     *recipient.userID,
				Type:       models.NotificationIntroductionRequest,
				Title:      "New introduction",
				Message:    fmt.Sprintf("%s would like to introduce you to %s", introducerName, counterpart.name),
				Link:       link,
				FromUserID: introducer.ID,
				Metadata:   map[string]any{"introduction_id": intro.ID},
			})
		}
		if s.emails != nil {
			s.emails.Notify(ctx, emails.TemplateIntroductionInvite, recipient.email, emails.Data{
				RecipientName:   recipient.name,
				ActorName:       introducerName,
				CounterpartName: counterpart.name,
				Note:            intro.Note,
				Link:            s.emails.Link(ctx, link),
			})
		}
	}
	s.notifications.Notify(ctx, inputs...)

	return mapIntroduction(intro), nil
}

// Respond records the caller's decision. Accepting twice is a no-op.
func (s *IntroductionService) Respond(ctx context.Context, introID string, caller IntroductionCaller, action ResponseAction) (*IntroductionResult, error) {
	ctx = ensureContext(ctx)
	if action != ActionAccept && action != ActionDecline {
		return nil, apperrors.NewBadRequest("action must be accept or decline")
	}

	intro, err := s.load(ctx, strings.TrimSpace(introID))
	if err != nil {
		return nil, err
	}

	role, ok := classifyCaller(intro, caller)
	if !ok {
		return nil, apperrors.NewForbidden("You are not part of this introduction")
	}
	if intro.Status.Terminal() {
		return nil, errIntroductionFinalised
	}

	prior := acceptanceOf(intro)
	next := combineAcceptance(prior, role, action)
	if next == prior {
		return &IntroductionResult{Introduction: mapIntroduction(*intro)}, nil
	}

	now := s.now().UTC()
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"person_a_accepted": next.PersonAAccepted,
			"person_b_accepted": next.PersonBAccepted,
			"status":            next.Status(),
		}
		if callerID := strings.TrimSpace(caller.UserID); callerID != "" {
			if role == RolePersonA && intro.PersonAUserID == nil {
				updates["person_a_user_id"] = callerID
				intro.PersonAUserID = &callerID
			}
			if role == RolePersonB && intro.PersonBUserID == nil {
				updates["person_b_user_id"] = callerID
				intro.PersonBUserID = &callerID
			}
		}
		if next.Declined {
			updates["declined_at"] = now
		}
		if next.BothAccepted() && intro.AcceptedAt == nil {
			updates["accepted_at"] = now
		}

		result := tx.Model(&models.PendingIntroduction{}).
			Where("id = ? AND status = ? AND person_a_accepted = ? AND person_b_accepted = ?",
				intro.ID, intro.Status, prior.PersonAAccepted, prior.PersonBAccepted).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("introduction service: update introduction: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errIntroductionConcurrent
		}

		if !next.BothAccepted() {
			return nil
		}
		aID, err := s.resolvePartyID(tx, intro.PersonAUserID, intro.PersonAEmail)
		if err != nil {
			return err
		}
		bID, err := s.resolvePartyID(tx, intro.PersonBUserID, intro.PersonBEmail)
		if err != nil {
			return err
		}
		intro.PersonAUserID, intro.PersonBUserID = aID, bID
		if aID == nil || bID == nil || *aID == *bID {
			return nil
		}
		exists, err := connectionExists(tx, *aID, *bID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		created, err = ensureConnectionPair(tx, *aID, *bID)
		return err
	})
	if err != nil {
		return nil, err
	}

	intro.PersonAAccepted = next.PersonAAccepted
	intro.PersonBAccepted = next.PersonBAccepted
	intro.Status = next.Status()
	if next.Declined {
		intro.DeclinedAt = &now
	}
	if next.BothAccepted() && intro.AcceptedAt == nil {
		intro.AcceptedAt = &now
	}
	metrics.WorkflowTransitions.WithLabelValues("introduction", string(intro.Status)).Inc()

	s.afterRespond(ctx, intro, role, next, created)
	return &IntroductionResult{Introduction: mapIntroduction(*intro), ConnectionCreated: created}, nil
}

func (s *IntroductionService) afterRespond(ctx context.Context, intro *models.PendingIntroduction, role IntroductionRole, state AcceptanceState, created bool) {
	actorName, actorID := intro.PersonAName, derefString(intro.PersonAUserID)
	if role == RolePersonB {
		actorName, actorID = intro.PersonBName, derefString(intro.PersonBUserID)
	}
	link := "/introductions/" + intro.ID
	meta := map[string]any{"introduction_id": intro.ID}

	switch {
	case state.Declined:
		s.notifications.Notify(ctx, CreateNotificationInput{
			UserID:     intro.IntroducerID,
			Type:       models.NotificationIntroductionDeclined,
			Title:      "Introduction declined",
			Message:    fmt.Sprintf("%s declined your introduction to %s", actorName, s.counterpartName(intro, role)),
			Link:       link,
			FromUserID: actorID,
			Metadata:   meta,
		})
	case state.BothAccepted():
		inputs := []CreateNotificationInput{{
			UserID:   intro.IntroducerID,
			Type:     models.NotificationIntroductionSuccessful,
			Title:    "Introduction successful",
			Message:  fmt.Sprintf("%s and %s both accepted your introduction", intro.PersonAName, intro.PersonBName),
			Link:     link,
			Metadata: meta,
		}}
		if created {
			users := s.loadUsers(ctx, derefString(intro.PersonAUserID), derefString(intro.PersonBUserID))
			a, b := users[derefString(intro.PersonAUserID)], users[derefString(intro.PersonBUserID)]
			for _, pair := range [][2]*models.User{{a, b}, {b, a}} {
				recipient, counterpart := pair[0], pair[1]
				if recipient == nil || counterpart == nil {
					continue
				}
				inputs = append(inputs, CreateNotificationInput{
					UserID:     recipient.ID,
					Type:       models.NotificationIntroductionAccepted,
					Title:      "You are now connected",
					Message:    fmt.Sprintf("You and %s are now connected", displayNameOr(counterpart, "your contact")),
					Link:       profilePath(counterpart),
					FromUserID: counterpart.ID,
					Metadata:   map[string]any{"introduction_id": intro.ID, "profile": profilePath(counterpart)},
				})
			}
		}
		s.notifications.Notify(ctx, inputs...)
	default:
		s.notifications.Notify(ctx, CreateNotificationInput{
			UserID:     intro.IntroducerID,
			Type:       models.NotificationIntroductionPartial,
			Title:      "Introduction accepted",
			Message:    fmt.Sprintf("%s accepted your introduction, waiting on %s", actorName, s.counterpartName(intro, role)),
			Link:       link,
			FromUserID: actorID,
			Metadata:   meta,
		})
	}
}

// ListForUser returns introductions the user made or takes part in.
func (s *IntroductionService) ListForUser(ctx context.Context, userID, email string) ([]IntroductionDTO, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	query := s.db.WithContext(ctx).Preload("Introducer")
	if email != "" {
		query = query.Where("introducer_id = ? OR person_a_user_id = ? OR person_b_user_id = ? OR person_a_email = ? OR person_b_email = ?",
			userID, userID, userID, email, email)
	} else {
		query = query.Where("introducer_id = ? OR person_a_user_id = ? OR person_b_user_id = ?", userID, userID, userID)
	}

	var rows []models.PendingIntroduction
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("introduction service: list introductions: %w", err)
	}
	items := make([]IntroductionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, *mapIntroduction(row))
	}
	return items, nil
}

// Get returns an introduction visible to its introducer or either party.
func (s *IntroductionService) Get(ctx context.Context, introID string, caller IntroductionCaller) (*IntroductionDTO, error) {
	intro, err := s.load(ensureContext(ctx), strings.TrimSpace(introID))
	if err != nil {
		return nil, err
	}
	if _, ok := classifyCaller(intro, caller); !ok && intro.IntroducerID != caller.UserID {
		return nil, apperrors.NewForbidden("You are not part of this introduction")
	}
	return mapIntroduction(*intro), nil
}

func (s *IntroductionService) load(ctx context.Context, id string) (*models.PendingIntroduction, error) {
	var intro models.PendingIntroduction
	err := s.db.WithContext(ctx).Preload("Introducer").Where("id = ?", id).First(&intro).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errIntroductionNotFound
		}
		return nil, fmt.Errorf("introduction service: load introduction: %w", err)
	}
	return &intro, nil
}

func (s *IntroductionService) resolvePartyID(tx *gorm.DB, userID *string, email string) (*string, error) {
	if userID != nil && *userID != "" {
		return userID, nil
	}
	if email == "" {
		return nil, nil
	}
	var user models.User
	err := tx.Select("id").Where("email = ?", email).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("introduction service: resolve party: %w", err)
	}
	id := user.ID
	return &id, nil
}

func (s *IntroductionService) loadUsers(ctx context.Context, ids ...string) map[string]*models.User {
	out := make(map[string]*models.User, len(ids))
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		s.log.Warn("load introduction parties", zap.Error(err))
		return out
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out
}

func (s *IntroductionService) counterpartName(intro *models.PendingIntroduction, role IntroductionRole) string {
	if role == RolePersonA {
		return intro.PersonBName
	}
	return intro.PersonAName
}

func resolveParty(tx *gorm.DB, input IntroductionParty, field string) (resolvedParty, error) {
	party := resolvedParty{
		email: normaliseEmail(input.Email),
		name:  strings.TrimSpace(input.Name),
	}
	var user models.User
	switch {
	case strings.TrimSpace(input.UserID) != "":
		if err := loadUser(tx, strings.TrimSpace(input.UserID), &user); err != nil {
			return party, apperrors.NewNotFound(field + " user not found")
		}
	case party.email != "":
		err := tx.Where("email = ?", party.email).Take(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return party, fmt.Errorf("introduction service: resolve %s: %w", field, err)
		}
	default:
		return party, apperrors.NewBadRequest(field + " needs a user id or an email")
	}

	if user.ID != "" {
		id := user.ID
		party.userID = &id
		party.user = &user
		if email := user.EmailAddress(); email != "" {
			party.email = email
		}
		if party.name == "" {
			party.name = user.DisplayName()
		}
	}
	if party.name == "" {
		party.name = party.email
	}
	return party, nil
}

func sameParty(a, b resolvedParty) bool {
	if a.userID != nil && b.userID != nil && *a.userID == *b.userID {
		return true
	}
	return a.email != "" && a.email == b.email
}

// classifyCaller matches the caller against both sides by user id first, then by email.
func classifyCaller(intro *models.PendingIntroduction, caller IntroductionCaller) (IntroductionRole, bool) {
	userID := strings.TrimSpace(caller.UserID)
	if userID != "" {
		if intro.PersonAUserID != nil && *intro.PersonAUserID == userID {
			return RolePersonA, true
		}
		if intro.PersonBUserID != nil && *intro.PersonBUserID == userID {
			return RolePersonB, true
		}
	}
	email := normaliseEmail(caller.Email)
	if email != "" {
		if strings.EqualFold(intro.PersonAEmail, email) {
			return RolePersonA, true
		}
		if strings.EqualFold(intro.PersonBEmail, email) {
			return RolePersonB, true
		}
	}
	return "", false
}

func mapIntroduction(row models.PendingIntroduction) *IntroductionDTO {
	return &IntroductionDTO{
		ID:         row.ID,
		Introducer: summarizeUser(row.Introducer),
		PersonA: IntroductionPartyDTO{
			UserID:   row.PersonAUserID,
			Name:     row.PersonAName,
			Email:    row.PersonAEmail,
			Accepted: row.PersonAAccepted,
		},
		PersonB: IntroductionPartyDTO{
			UserID:   row.PersonBUserID,
			Name:     row.PersonBName,
			Email:    row.PersonBEmail,
			Accepted: row.PersonBAccepted,
		},
		Note:       row.Note,
		Status:     row.Status,
		CreatedAt:  row.CreatedAt,
		AcceptedAt: row.AcceptedAt,
		DeclinedAt: row.DeclinedAt,
	}
}
