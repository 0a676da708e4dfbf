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
	"github.com/charlesng35/introhub/pkg/crypto"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/metrics"
)

const defaultReferralTokenTTL = 14 * 24 * time.Hour

// ReferralRole filters referrals by the viewer's part in them.
type ReferralRole string

const (
	ReferralRoleAny         ReferralRole = ""
	ReferralRoleReferee     ReferralRole = "referee"
	ReferralRoleFirstDegree ReferralRole = "first_degree"
	ReferralRoleTarget      ReferralRole = "target"
)

// CreateReferralInput describes a new introduction request. The target is
// either TargetUserID or a bare name plus email and/or phone.
type CreateReferralInput struct {
	RefereeID     string
	FirstDegreeID string
	TargetUserID  string
	TargetName    string
	TargetEmail   string
	TargetPhone   string
	Note          string
}

// SecondDegreeResponseInput is submitted by the target through an emailed link.
// Name, email and phone backfill a placeholder profile when provided.
type SecondDegreeResponseInput struct {
	Token     string
	Action    ResponseAction
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ReferralDTO is the API view of a referral.
type ReferralDTO struct {
	ID          string                `json:"id"`
	Referee     *UserSummary          `json:"referee,omitempty"`
	FirstDegree *UserSummary          `json:"first_degree,omitempty"`
	Target      *UserSummary          `json:"target,omitempty"`
	Note        string                `json:"note,omitempty"`
	Status      models.ReferralStatus `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	ApprovedAt  *time.Time            `json:"approved_at,omitempty"`
	DeniedAt    *time.Time            `json:"denied_at,omitempty"`
}

// ReferralOption customises the ReferralService.
type ReferralOption func(*ReferralService)

// WithReferralTokenTTL overrides how long emailed response links stay valid.
func WithReferralTokenTTL(ttl time.Duration) ReferralOption {
	return func(s *ReferralService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithReferralClock injects a custom time source.
func WithReferralClock(clock func() time.Time) ReferralOption {
	return func(s *ReferralService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ReferralService implements the three-hop referee -> first-degree -> target workflow.
type ReferralService struct {
	db            *gorm.DB
	notifications *NotificationService
	emails        EmailNotifier
	tokenTTL      time.Duration
	now           func() time.Time
	log           *zap.Logger
}

// NewReferralService constructs a ReferralService.
func NewReferralService(db *gorm.DB, notifications *NotificationService, mailer EmailNotifier, opts ...ReferralOption) (*ReferralService, error) {
	if db == nil {
		return nil, errors.New("referral service: db is required")
	}
	service := &ReferralService{
		db:            db,
		notifications: notifications,
		emails:        mailer,
		tokenTTL:      defaultReferralTokenTTL,
		now:           time.Now,
		log:           logger.WithModule("referrals"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateReferral records a new PENDING referral, materialising the target as a
// placeholder user when it is not registered yet.
func (s *ReferralService) CreateReferral(ctx context.Context, input CreateReferralInput) (*ReferralDTO, error) {
	ctx = ensureContext(ctx)
	input.RefereeID = strings.TrimSpace(input.RefereeID)
	input.FirstDegreeID = strings.TrimSpace(input.FirstDegreeID)
	input.TargetUserID = strings.TrimSpace(input.TargetUserID)
	input.TargetName = strings.TrimSpace(input.TargetName)
	input.TargetEmail = normaliseEmail(input.TargetEmail)
	input.TargetPhone = strings.TrimSpace(input.TargetPhone)

	if input.RefereeID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if input.FirstDegreeID == "" {
		return nil, apperrors.NewBadRequest("first degree contact is required")
	}
	if input.FirstDegreeID == input.RefereeID {
		return nil, apperrors.NewBadRequest("You cannot refer yourself through yourself")
	}
	if input.TargetUserID == "" && (input.TargetName == "" || (input.TargetEmail == "" && input.TargetPhone == "")) {
		return nil, apperrors.NewBadRequest("target needs a name and an email or phone")
	}

	var (
		referee, firstDegree, target models.User
		referral                     models.Referral
		token                        string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadUser(tx, input.RefereeID, &referee); err != nil {
			return err
		}
		if err := loadUser(tx, input.FirstDegreeID, &firstDegree); err != nil {
			return apperrors.NewNotFound("First degree contact not found")
		}
		if err := s.resolveTarget(tx, input, &target); err != nil {
			return err
		}
		if target.ID == referee.ID || target.ID == firstDegree.ID {
			return apperrors.NewBadRequest("target must differ from the referee and the first degree contact")
		}

		if err := ensureContact(tx, firstDegree.ID, &target, models.DegreeFirst); err != nil {
			return err
		}
		if err := ensureContact(tx, referee.ID, &target, models.DegreeSecond); err != nil {
			return err
		}

		var err error
		token, err = crypto.GenerateToken(defaultTokenSize)
		if err != nil {
			return fmt.Errorf("referral service: generate token: %w", err)
		}
		expiresAt := s.now().Add(s.tokenTTL)
		referral = models.Referral{
			RefereeID:      referee.ID,
			FirstDegreeID:  firstDegree.ID,
			ReferralID:     target.ID,
			Note:           strings.TrimSpace(input.Note),
			Status:         models.ReferralPending,
			TokenHash:      crypto.HashToken(token),
			TokenExpiresAt: &expiresAt,
		}
		if err := tx.Create(&referral).Error; err != nil {
			return fmt.Errorf("referral service: create referral: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	referral.Referee = &referee
	referral.FirstDegree = &firstDegree
	referral.ReferralUser = &target
	metrics.WorkflowTransitions.WithLabelValues("referral", string(models.ReferralPending)).Inc()

	refereeName := displayNameOr(&referee, "Someone")
	targetName := displayNameOr(&target, "a contact")
	requests := []CreateNotificationInput{{
		UserID:     firstDegree.ID,
		Type:       models.NotificationReferralRequest,
		Title:      "Introduction request",
		Message:    fmt.Sprintf("%s asked you for an introduction to %s", refereeName, targetName),
		Link:       "/referrals/" + referral.ID,
		FromUserID: referee.ID,
		Metadata:   map[string]any{"referral_id": referral.ID},
	}}
	if !target.IsPlaceholder {
		requests = append(requests, CreateNotificationInput{
			UserID:     target.ID,
			Type:       models.NotificationReferralRequest,
			Title:      "Introduction request",
			Message:    fmt.Sprintf("%s would like to be introduced to you through %s", refereeName, displayNameOr(&firstDegree, "a contact")),
			Link:       "/referrals/" + referral.ID,
			FromUserID: referee.ID,
			Metadata:   map[string]any{"referral_id": referral.ID},
		})
	}
	s.notifications.Notify(ctx, requests...)

	if s.emails != nil {
		s.emails.Notify(ctx, emails.TemplateReferralRequest, target.EmailAddress(), emails.Data{
			RecipientName:   displayNameOr(&target, "there"),
			ActorName:       refereeName,
			CounterpartName: displayNameOr(&firstDegree, "a mutual contact"),
			Note:            referral.Note,
			Link:            s.emails.Link(ctx, "/referrals/respond?token="+token),
		})
	}

	return mapReferral(referral), nil
}

func (s *ReferralService) resolveTarget(tx *gorm.DB, input CreateReferralInput, target *models.User) error {
	if input.TargetUserID != "" {
		if err := loadUser(tx, input.TargetUserID, target); err != nil {
			return apperrors.NewNotFound("Target user not found")
		}
		return nil
	}

	if input.TargetEmail != "" {
		err := tx.Where("email = ?", input.TargetEmail).Take(target).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("referral service: find target by email: %w", err)
		}
	}

	first, last := splitName(input.TargetName)
	*target = models.User{
		Email:         stringPtr(input.TargetEmail),
		Phone:         input.TargetPhone,
		FirstName:     first,
		LastName:      last,
		UserType:      models.UserTypeReferral,
		IsPlaceholder: true,
	}
	if err := tx.Create(target).Error; err != nil {
		return fmt.Errorf("referral service: create placeholder: %w", err)
	}
	return nil
}

// Respond applies an authenticated decision by the target or the first-degree intermediary.
func (s *ReferralService) Respond(ctx context.Context, referralID, actorID string, action ResponseAction) (*ReferralDTO, error) {
	ctx = ensureContext(ctx)
	referral, err := s.load(ctx, "id = ?", strings.TrimSpace(referralID))
	if err != nil {
		return nil, err
	}

	actorID = strings.TrimSpace(actorID)
	if actorID != referral.ReferralID && actorID != referral.FirstDegreeID {
		return nil, apperrors.NewForbidden("Only the target or the first degree contact can respond")
	}

	status, err := referralStatusFor(action)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, referral, status)
	}); err != nil {
		return nil, err
	}

	s.notifyParticipants(ctx, referral, actorID)
	if status == models.ReferralApproved {
		s.sendApprovalEmails(ctx, referral)
	}
	return mapReferral(*referral), nil
}

// RespondSecondDegree applies the target's decision submitted through an emailed link.
func (s *ReferralService) RespondSecondDegree(ctx context.Context, input SecondDegreeResponseInput) (*ReferralDTO, error) {
	ctx = ensureContext(ctx)
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, errLinkInvalid
	}

	referral, err := s.load(ctx, "token_hash = ?", crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, errReferralNotFound) {
			return nil, errLinkInvalid
		}
		return nil, err
	}
	if referral.TokenExpiresAt != nil && referral.TokenExpiresAt.Before(s.now()) {
		return nil, errLinkInvalid
	}

	status, err := referralStatusFor(input.Action)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if referral.Status != models.ReferralPending {
			return errReferralResponded
		}
		if err := backfillPlaceholder(tx, referral.ReferralUser, input); err != nil {
			return err
		}
		return s.transition(tx, referral, status)
	})
	if err != nil {
		return nil, err
	}

	s.notifyParticipants(ctx, referral, referral.ReferralID)

	if s.emails != nil {
		target := referral.ReferralUser
		accepted := status == models.ReferralApproved
		s.emails.Notify(ctx, emails.TemplateReferralResponseReferee, referral.Referee.EmailAddress(), emails.Data{
			RecipientName:    displayNameOr(referral.Referee, "there"),
			ActorName:        displayNameOr(target, "Your contact"),
			CounterpartName:  displayNameOr(target, "Your contact"),
			CounterpartEmail: revealIf(accepted, target.EmailAddress()),
			CounterpartPhone: revealIf(accepted, target.Phone),
			Accepted:         accepted,
		})
		s.emails.Notify(ctx, emails.TemplateReferralResponseFirstDegree, referral.FirstDegree.EmailAddress(), emails.Data{
			RecipientName:   displayNameOr(referral.FirstDegree, "there"),
			ActorName:       displayNameOr(target, "Your contact"),
			CounterpartName: displayNameOr(referral.Referee, "the referee"),
			Accepted:        accepted,
		})
	}
	return mapReferral(*referral), nil
}

// ListForUser returns referrals the user takes part in, optionally filtered by role.
func (s *ReferralService) ListForUser(ctx context.Context, userID string, role ReferralRole) ([]ReferralDTO, error) {
	ctx = ensureContext(ctx)
	query := s.db.WithContext(ctx).
		Preload("Referee").
		Preload("FirstDegree").
		Preload("ReferralUser")

	switch role {
	case ReferralRoleAny:
		query = query.Where("referee_id = ? OR first_degree_id = ? OR referral_id = ?", userID, userID, userID)
	case ReferralRoleReferee:
		query = query.Where("referee_id = ?", userID)
	case ReferralRoleFirstDegree:
		query = query.Where("first_degree_id = ?", userID)
	case ReferralRoleTarget:
		query = query.Where("referral_id = ?", userID)
	default:
		return nil, apperrors.NewBadRequest("role must be referee, first_degree or target")
	}

	var rows []models.Referral
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("referral service: list referrals: %w", err)
	}

	items := make([]ReferralDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, *mapReferral(row))
	}
	return items, nil
}

// Get returns a referral visible to one of its participants.
func (s *ReferralService) Get(ctx context.Context, referralID, actorID string) (*ReferralDTO, error) {
	ctx = ensureContext(ctx)
	referral, err := s.load(ctx, "id = ?", strings.TrimSpace(referralID))
	if err != nil {
		return nil, err
	}
	if actorID != referral.RefereeID && actorID != referral.FirstDegreeID && actorID != referral.ReferralID {
		return nil, apperrors.NewForbidden("You are not part of this referral")
	}
	return mapReferral(*referral), nil
}

func (s *ReferralService) load(ctx context.Context, query string, arg any) (*models.Referral, error) {
	var referral models.Referral
	err := s.db.WithContext(ctx).
		Preload("Referee").
		Preload("FirstDegree").
		Preload("ReferralUser").
		Where(query, arg).
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errReferralNotFound
		}
		return nil, fmt.Errorf("referral service: load referral: %w", err)
	}
	return &referral, nil
}

// transition moves a PENDING referral to a terminal status. The update is
// guarded on PENDING so a second response never rewrites the timestamps.
func (s *ReferralService) transition(tx *gorm.DB, referral *models.Referral, status models.ReferralStatus) error {
	if referral.Status != models.ReferralPending {
		return errReferralResponded
	}

	now := s.now().UTC()
	updates := map[string]any{"status": status}
	switch status {
	case models.ReferralApproved:
		updates["approved_at"] = now
	case models.ReferralDenied:
		updates["denied_at"] = now
	default:
		return fmt.Errorf("referral service: invalid target status %q", status)
	}

	result := tx.Model(&models.Referral{}).
		Where("id = ? AND status = ?", referral.ID, models.ReferralPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("referral service: update referral: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errReferralResponded
	}

	referral.Status = status
	if status == models.ReferralApproved {
		referral.ApprovedAt = &now
	} else {
		referral.DeniedAt = &now
	}
	metrics.WorkflowTransitions.WithLabelValues("referral", string(status)).Inc()
	return nil
}

func (s *ReferralService) notifyParticipants(ctx context.Context, referral *models.Referral, actorID string) {
	notificationType := models.NotificationReferralDenied
	title := "Introduction declined"
	verb := "declined"
	if referral.Status == models.ReferralApproved {
		notificationType = models.NotificationReferralApproved
		title = "Introduction approved"
		verb = "approved"
	}

	actorName := displayNameOr(referral.ReferralUser, "The contact")
	if actorID == referral.FirstDegreeID {
		actorName = displayNameOr(referral.FirstDegree, "Your contact")
	}
	message := fmt.Sprintf("%s %s the introduction between %s and %s", actorName, verb,
		displayNameOr(referral.Referee, "the referee"), displayNameOr(referral.ReferralUser, "the target"))

	var inputs []CreateNotificationInput
	for _, recipient := range []string{referral.RefereeID, referral.FirstDegreeID} {
		if recipient == actorID {
			continue
		}
		inputs = append(inputs, CreateNotificationInput{
			UserID:     recipient,
			Type:       notificationType,
			Title:      title,
			Message:    message,
			Link:       "/referrals/" + referral.ID,
			FromUserID: actorID,
			Metadata:   map[string]any{"referral_id": referral.ID},
		})
	}
	s.notifications.Notify(ctx, inputs...)
}

// sendApprovalEmails sends each participant the counterpart's contact details.
func (s *ReferralService) sendApprovalEmails(ctx context.Context, referral *models.Referral) {
	if s.emails == nil {
		return
	}
	referee, firstDegree, target := referral.Referee, referral.FirstDegree, referral.ReferralUser
	link := s.emails.Link(ctx, "/referrals/"+referral.ID)

	s.emails.Notify(ctx, emails.TemplateReferralApprovedReferee, referee.EmailAddress(), emails.Data{
		RecipientName:    displayNameOr(referee, "there"),
		ActorName:        displayNameOr(firstDegree, "Your contact"),
		CounterpartName:  displayNameOr(target, "your contact"),
		CounterpartEmail: target.EmailAddress(),
		CounterpartPhone: target.Phone,
		Link:             link,
	})
	s.emails.Notify(ctx, emails.TemplateReferralApprovedFirstDegree, firstDegree.EmailAddress(), emails.Data{
		RecipientName:    displayNameOr(firstDegree, "there"),
		ActorName:        displayNameOr(referee, "The referee"),
		CounterpartName:  displayNameOr(target, "your contact"),
		CounterpartEmail: target.EmailAddress(),
		CounterpartPhone: target.Phone,
		Link:             link,
	})
	s.emails.Notify(ctx, emails.TemplateReferralApprovedTarget, target.EmailAddress(), emails.Data{
		RecipientName:    displayNameOr(target, "there"),
		ActorName:        displayNameOr(firstDegree, "A mutual contact"),
		CounterpartName:  displayNameOr(referee, "a new contact"),
		CounterpartEmail: referee.EmailAddress(),
		CounterpartPhone: referee.Phone,
		Link:             link,
	})
}

func referralStatusFor(action ResponseAction) (models.ReferralStatus, error) {
	switch action {
	case ActionAccept:
		return models.ReferralApproved, nil
	case ActionDecline:
		return models.ReferralDenied, nil
	default:
		return "", apperrors.NewBadRequest("action must be accept or decline")
	}
}

// backfillPlaceholder fills a placeholder target's profile with the details
// supplied at response time. Registered users are never modified.
func backfillPlaceholder(tx *gorm.DB, target *models.User, input SecondDegreeResponseInput) error {
	if target == nil || !target.IsPlaceholder {
		return nil
	}

	updates := map[string]any{}
	if first := strings.TrimSpace(input.FirstName); first != "" {
		updates["first_name"] = first
		target.FirstName = first
	}
	if last := strings.TrimSpace(input.LastName); last != "" {
		updates["last_name"] = last
		target.LastName = last
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		updates["phone"] = phone
		target.Phone = phone
	}
	if email := normaliseEmail(input.Email); email != "" && email != target.EmailAddress() {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, target.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("referral service: check email: %w", err)
		}
		if count > 0 {
			return apperrors.NewBadRequest("That email address is already registered")
		}
		updates["email"] = email
		target.Email = &email
	}
	if len(updates) == 0 {
		return nil
	}

	if err := tx.Model(&models.User{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperrors.NewBadRequest("That email address is already registered")
		}
		return fmt.Errorf("referral service: backfill target: %w", err)
	}
	return nil
}

// ensureContact records target in owner's address book unless already present.
func ensureContact(tx *gorm.DB, ownerID string, target *models.User, degree models.DegreeType) error {
	var count int64
	if err := tx.Model(&models.Contact{}).
		Where("owner_id = ? AND contact_user_id = ?", ownerID, target.ID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check contact: %w", err)
	}
	if count > 0 {
		return nil
	}

	contactUserID := target.ID
	contact := models.Contact{
		OwnerID:       ownerID,
		ContactUserID: &contactUserID,
		Name:          target.DisplayName(),
		Email:         target.EmailAddress(),
		Phone:         target.Phone,
		DegreeType:    degree,
	}
	if err := tx.Create(&contact).Error; err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func revealIf(ok bool, value string) string {
	if !ok {
		return ""
	}
	return value
}

func mapReferral(row models.Referral) *ReferralDTO {
	return &ReferralDTO{
		ID:          row.ID,
		Referee:     summarizeUser(row.Referee),
		FirstDegree: summarizeUser(row.FirstDegree),
		Target:      summarizeUser(row.ReferralUser),
		Note:        row.Note,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
		ApprovedAt:  row.ApprovedAt,
		DeniedAt:    row.DeniedAt,
	}
}
