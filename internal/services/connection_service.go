package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/pkg/crypto"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/metrics"
)

const defaultConnectionTokenTTL = 7 * 24 * time.Hour

// ConnectionStatus is the relationship between the viewer and another user.
type ConnectionStatus string

const (
	StatusSelf             ConnectionStatus = "self"
	StatusConnected        ConnectionStatus = "connected"
	StatusPendingSent      ConnectionStatus = "pending_sent"
	StatusPendingReceived  ConnectionStatus = "pending_received"
	StatusNotConnected     ConnectionStatus = "not_connected"
	StatusNotAuthenticated ConnectionStatus = "not_authenticated"
)

// RequestDirection selects incoming or outgoing pending requests.
type RequestDirection string

const (
	DirectionIncoming RequestDirection = "incoming"
	DirectionOutgoing RequestDirection = "outgoing"
)

// ConnectionRequestDTO is the API view of a connection request.
type ConnectionRequestDTO struct {
	ID          string                         `json:"id"`
	FromUser    *UserSummary                   `json:"from_user,omitempty"`
	ToUser      *UserSummary                   `json:"to_user,omitempty"`
	Note        string                         `json:"note,omitempty"`
	Status      models.ConnectionRequestStatus `json:"status"`
	CreatedAt   time.Time                      `json:"created_at"`
	RespondedAt *time.Time                     `json:"responded_at,omitempty"`
}

// ConnectionDTO is one entry of a user's connection list.
type ConnectionDTO struct {
	ID          string       `json:"id"`
	User        *ContactCard `json:"user"`
	ConnectedAt time.Time    `json:"connected_at"`
}

// ConnectionRequestResult describes the outcome of RequestConnection.
type ConnectionRequestResult struct {
	Request      *ConnectionRequestDTO `json:"request"`
	AutoAccepted bool                  `json:"auto_accepted"`
}

// ConnectionStatusResult is returned by GetConnectionStatus.
type ConnectionStatusResult struct {
	Status    ConnectionStatus `json:"status"`
	RequestID string           `json:"request_id,omitempty"`
}

// ConnectionOption customises the ConnectionService.
type ConnectionOption func(*ConnectionService)

// WithConnectionTokenTTL overrides how long emailed review links stay valid.
func WithConnectionTokenTTL(ttl time.Duration) ConnectionOption {
	return func(s *ConnectionService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithConnectionClock injects a custom time source.
func WithConnectionClock(clock func() time.Time) ConnectionOption {
	return func(s *ConnectionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ConnectionService implements the direct connect request workflow.
type ConnectionService struct {
	db            *gorm.DB
	notifications *NotificationService
	emails        EmailNotifier
	tokenTTL      time.Duration
	now           func() time.Time
	log           *zap.Logger
}

// NewConnectionService constructs a ConnectionService.
func NewConnectionService(db *gorm.DB, notifications *NotificationService, mailer EmailNotifier, opts ...ConnectionOption) (*ConnectionService, error) {
	if db == nil {
		return nil, errors.New("connection service: db is required")
	}
	service := &ConnectionService{
		db:            db,
		notifications: notifications,
		emails:        mailer,
		tokenTTL:      defaultConnectionTokenTTL,
		now:           time.Now,
		log:           logger.WithModule("connections"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// RequestConnection asks toUserID to connect with fromUserID. When toUserID
// already has a pending request towards fromUserID, that request is accepted
// instead of creating a second one.
func (s *ConnectionService) RequestConnection(ctx context.Context, fromUserID, toUserID, note string) (*ConnectionRequestResult, error) {
	ctx = ensureContext(ctx)
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)
	note = strings.TrimSpace(note)
	if fromUserID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if toUserID == "" {
		return nil, apperrors.NewBadRequest("target user is required")
	}
	if fromUserID == toUserID {
		return nil, apperrors.NewBadRequest("You cannot connect with yourself")
	}

	var (
		from, to     models.User
		request      models.ConnectionRequest
		autoAccepted bool
		token        string
	)

	attempt := func() error {
		autoAccepted = false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := loadUser(tx, fromUserID, &from); err != nil {
				return err
			}
			if err := loadUser(tx, toUserID, &to); err != nil {
				return err
			}

			connected, err := connectionExists(tx, fromUserID, toUserID)
			if err != nil {
				return err
			}
			if connected {
				return apperrors.NewConflict("You are already connected with this user")
			}

			reverse, err := findPendingRequest(tx, toUserID, fromUserID)
			if err != nil {
				return err
			}
			if reverse != nil {
				if err := s.transition(tx, reverse, models.ConnectionRequestAccepted); err != nil {
					return err
				}
				request = *reverse
				autoAccepted = true
				return nil
			}

			existing, err := findPendingRequest(tx, fromUserID, toUserID)
			if err != nil {
				return err
			}
			if existing != nil {
				return errDuplicatePending
			}

			token, err = crypto.GenerateToken(defaultTokenSize)
			if err != nil {
				return fmt.Errorf("connection service: generate token: %w", err)
			}
			expiresAt := s.now().Add(s.tokenTTL)
			request = models.ConnectionRequest{
				FromUserID:     fromUserID,
				ToUserID:       toUserID,
				Note:           note,
				Status:         models.ConnectionRequestPending,
				PendingKey:     models.PendingRequestKey(fromUserID, toUserID),
				TokenHash:      crypto.HashToken(token),
				TokenExpiresAt: &expiresAt,
			}
			if err := tx.Create(&request).Error; err != nil {
				if isUniqueConstraintError(err) {
					return errPendingKeyTaken
				}
				return fmt.Errorf("connection service: create request: %w", err)
			}
			return nil
		})
	}

	// A pending key collision means the other side committed a request after
	// our lookups ran. The second attempt sees it and takes the auto-accept path.
	err := attempt()
	if errors.Is(err, errPendingKeyTaken) {
		s.log.Debug("pending request raced, retrying",
			zap.String("from_user_id", fromUserID),
			zap.String("to_user_id", toUserID),
		)
		err = attempt()
	}
	if errors.Is(err, errPendingKeyTaken) {
		return nil, errDuplicatePending
	}
	if err != nil {
		return nil, err
	}

	if autoAccepted {
		// The reverse request was sent by `to`, so `to` is the original requester.
		request.FromUser = &to
		request.ToUser = &from
		s.afterAccept(ctx, &request)
		return &ConnectionRequestResult{Request: mapConnectionRequest(request), AutoAccepted: true}, nil
	}

	request.FromUser = &from
	request.ToUser = &to
	metrics.WorkflowTransitions.WithLabelValues("connection", string(models.ConnectionRequestPending)).Inc()

	s.notifications.Notify(ctx, CreateNotificationInput{
		UserID:     toUserID,
		Type:       models.NotificationConnectionRequest,
		Title:      "New connection request",
		Message:    fmt.Sprintf("%s wants to connect with you", displayNameOr(&from, "Someone")),
		Link:       "/connections/requests",
		FromUserID: fromUserID,
		Metadata:   map[string]any{"request_id": request.ID},
	})
	if s.emails != nil {
		s.emails.Notify(ctx, emails.TemplateConnectionRequest, to.EmailAddress(), emails.Data{
			RecipientName: displayNameOr(&to, "there"),
			ActorName:     displayNameOr(&from, "Someone"),
			Note:          note,
			Link:          s.emails.Link(ctx, "/connections/respond?token="+token),
		})
	}

	return &ConnectionRequestResult{Request: mapConnectionRequest(request)}, nil
}

// RespondByID lets the recipient accept or decline a request from the inbox.
func (s *ConnectionService) RespondByID(ctx context.Context, requestID, actorID string, action ResponseAction) (*ConnectionRequestDTO, error) {
	ctx = ensureContext(ctx)
	var request models.ConnectionRequest
	err := s.db.WithContext(ctx).
		Preload("FromUser").
		Preload("ToUser").
		First(&request, "id = ?", strings.TrimSpace(requestID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errRequestNotFound
		}
		return nil, fmt.Errorf("connection service: load request: %w", err)
	}
	if request.ToUserID != strings.TrimSpace(actorID) {
		return nil, apperrors.NewForbidden("Only the recipient can respond to this request")
	}
	return s.respond(ctx, &request, action)
}

// RespondByToken handles the unauthenticated email-link flow.
func (s *ConnectionService) RespondByToken(ctx context.Context, token string, action ResponseAction) (*ConnectionRequestDTO, error) {
	ctx = ensureContext(ctx)
	request, err := s.requestByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, request, action)
}

// GetRequestByToken loads the request behind an emailed review link.
func (s *ConnectionService) GetRequestByToken(ctx context.Context, token string) (*ConnectionRequestDTO, error) {
	ctx = ensureContext(ctx)
	request, err := s.requestByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return mapConnectionRequest(*request), nil
}

func (s *ConnectionService) requestByToken(ctx context.Context, token string) (*models.ConnectionRequest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errLinkInvalid
	}

	var request models.ConnectionRequest
	err := s.db.WithContext(ctx).
		Preload("FromUser").
		Preload("ToUser").
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLinkInvalid
		}
		return nil, fmt.Errorf("connection service: load request by token: %w", err)
	}
	if request.TokenExpiresAt != nil && request.TokenExpiresAt.Before(s.now()) {
		return nil, errLinkInvalid
	}
	return &request, nil
}

func (s *ConnectionService) respond(ctx context.Context, request *models.ConnectionRequest, action ResponseAction) (*ConnectionRequestDTO, error) {
	if request.Status != models.ConnectionRequestPending {
		return nil, errAlreadyResponded
	}

	status := models.ConnectionRequestDeclined
	switch action {
	case ActionAccept:
		status = models.ConnectionRequestAccepted
	case ActionDecline:
	default:
		return nil, apperrors.NewBadRequest("action must be accept or decline")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, request, status)
	})
	if err != nil {
		return nil, err
	}

	if status == models.ConnectionRequestAccepted {
		s.afterAccept(ctx, request)
	} else {
		s.afterDecline(ctx, request)
	}
	return mapConnectionRequest(*request), nil
}

// transition flips a pending request to a terminal status, creating the
// mirrored connection pair on acceptance. The update is guarded on PENDING so
// only one concurrent responder wins.
func (s *ConnectionService) transition(tx *gorm.DB, request *models.ConnectionRequest, status models.ConnectionRequestStatus) error {
	now := s.now().UTC()
	result := tx.Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", request.ID, models.ConnectionRequestPending).
		Updates(map[string]any{
			"status":       status,
			"responded_at": now,
			"pending_key":  nil,
		})
	if result.Error != nil {
		return fmt.Errorf("connection service: update request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errAlreadyResponded
	}

	if status == models.ConnectionRequestAccepted {
		if _, err := ensureConnectionPair(tx, request.FromUserID, request.ToUserID); err != nil {
			return err
		}
	}

	request.Status = status
	request.RespondedAt = &now
	request.PendingKey = nil
	return nil
}

func (s *ConnectionService) afterAccept(ctx context.Context, request *models.ConnectionRequest) {
	metrics.WorkflowTransitions.WithLabelValues("connection", string(models.ConnectionRequestAccepted)).Inc()

	requester, recipient := request.FromUser, request.ToUser
	s.notifications.Notify(ctx,
		CreateNotificationInput{
			UserID:     request.FromUserID,
			Type:       models.NotificationConnectionAccepted,
			Title:      "Connection accepted",
			Message:    fmt.Sprintf("%s accepted your connection request", displayNameOr(recipient, "Someone")),
			Link:       profilePath(recipient),
			FromUserID: request.ToUserID,
			Metadata:   map[string]any{"request_id": request.ID},
		},
		CreateNotificationInput{
			UserID:     request.ToUserID,
			Type:       models.NotificationConnectionAccepted,
			Title:      "New connection",
			Message:    fmt.Sprintf("You are now connected with %s", displayNameOr(requester, "a new contact")),
			Link:       profilePath(requester),
			FromUserID: request.FromUserID,
			Metadata:   map[string]any{"request_id": request.ID},
		},
	)

	if s.emails != nil && requester != nil {
		s.emails.Notify(ctx, emails.TemplateConnectionAccepted, requester.EmailAddress(), emails.Data{
			RecipientName: displayNameOr(requester, "there"),
			ActorName:     displayNameOr(recipient, "Your contact"),
			Link:          s.emails.Link(ctx, profilePath(recipient)),
		})
	}
}

func (s *ConnectionService) afterDecline(ctx context.Context, request *models.ConnectionRequest) {
	metrics.WorkflowTransitions.WithLabelValues("connection", string(models.ConnectionRequestDeclined)).Inc()

	s.notifications.Notify(ctx, CreateNotificationInput{
		UserID:     request.FromUserID,
		Type:       models.NotificationConnectionDeclined,
		Title:      "Connection request declined",
		Message:    fmt.Sprintf("%s declined your connection request", displayNameOr(request.ToUser, "The recipient")),
		FromUserID: request.ToUserID,
		Metadata:   map[string]any{"request_id": request.ID},
	})
}

// GetConnectionStatus reports how currentUserID relates to targetUserID.
// Precedence is self, then an existing connection, then a pending request.
func (s *ConnectionService) GetConnectionStatus(ctx context.Context, currentUserID, targetUserID string) (*ConnectionStatusResult, error) {
	ctx = ensureContext(ctx)
	currentUserID = strings.TrimSpace(currentUserID)
	targetUserID = strings.TrimSpace(targetUserID)

	if currentUserID == "" {
		return &ConnectionStatusResult{Status: StatusNotAuthenticated}, nil
	}
	if currentUserID == targetUserID {
		return &ConnectionStatusResult{Status: StatusSelf}, nil
	}

	db := s.db.WithContext(ctx)
	connected, err := connectionExists(db, currentUserID, targetUserID)
	if err != nil {
		return nil, err
	}
	if connected {
		return &ConnectionStatusResult{Status: StatusConnected}, nil
	}

	sent, err := findPendingRequest(db, currentUserID, targetUserID)
	if err != nil {
		return nil, err
	}
	if sent != nil {
		return &ConnectionStatusResult{Status: StatusPendingSent, RequestID: sent.ID}, nil
	}

	received, err := findPendingRequest(db, targetUserID, currentUserID)
	if err != nil {
		return nil, err
	}
	if received != nil {
		return &ConnectionStatusResult{Status: StatusPendingReceived, RequestID: received.ID}, nil
	}

	return &ConnectionStatusResult{Status: StatusNotConnected}, nil
}

// ListConnections returns the user's connections, newest first.
func (s *ConnectionService) ListConnections(ctx context.Context, userID string) ([]ConnectionDTO, error) {
	ctx = ensureContext(ctx)
	var rows []models.Connection
	if err := s.db.WithContext(ctx).
		Preload("ConnectedUser").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("connection service: list connections: %w", err)
	}

	items := make([]ConnectionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ConnectionDTO{
			ID:          row.ID,
			User:        contactCard(row.ConnectedUser),
			ConnectedAt: row.CreatedAt,
		})
	}
	return items, nil
}

// ListRequests returns the user's pending requests in the given direction.
func (s *ConnectionService) ListRequests(ctx context.Context, userID string, direction RequestDirection) ([]ConnectionRequestDTO, error) {
	ctx = ensureContext(ctx)
	column := "to_user_id"
	switch direction {
	case DirectionIncoming, "":
	case DirectionOutgoing:
		column = "from_user_id"
	default:
		return nil, apperrors.NewBadRequest("direction must be incoming or outgoing")
	}

	var rows []models.ConnectionRequest
	if err := s.db.WithContext(ctx).
		Preload("FromUser").
		Preload("ToUser").
		Where(column+" = ? AND status = ?", userID, models.ConnectionRequestPending).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("connection service: list requests: %w", err)
	}

	items := make([]ConnectionRequestDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, *mapConnectionRequest(row))
	}
	return items, nil
}

// RemoveConnection deletes both directions of a connection.
func (s *ConnectionService) RemoveConnection(ctx context.Context, userID, otherUserID string) error {
	ctx = ensureContext(ctx)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("(user_id = ? AND connected_user_id = ?) OR (user_id = ? AND connected_user_id = ?)",
				userID, otherUserID, otherUserID, userID).
			Delete(&models.Connection{})
		if result.Error != nil {
			return fmt.Errorf("connection service: remove connection: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NewNotFound("Connection not found")
		}
		return nil
	})
}

func loadUser(db *gorm.DB, id string, out *models.User) error {
	if err := db.First(out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	return nil
}

func connectionExists(db *gorm.DB, a, b string) (bool, error) {
	var count int64
	if err := db.Model(&models.Connection{}).
		Where("(user_id = ? AND connected_user_id = ?) OR (user_id = ? AND connected_user_id = ?)", a, b, b, a).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check connection: %w", err)
	}
	return count > 0, nil
}

func findPendingRequest(db *gorm.DB, fromUserID, toUserID string) (*models.ConnectionRequest, error) {
	var request models.ConnectionRequest
	err := db.
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromUserID, toUserID, models.ConnectionRequestPending).
		Take(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	return &request, nil
}

// ensureConnectionPair writes both directions of a connection, leaving any
// existing row untouched. It reports whether a new row was inserted.
func ensureConnectionPair(tx *gorm.DB, a, b string) (bool, error) {
	pair := []models.Connection{
		{UserID: a, ConnectedUserID: b},
		{UserID: b, ConnectedUserID: a},
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pair)
	if result.Error != nil {
		return false, fmt.Errorf("create connection pair: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func mapConnectionRequest(row models.ConnectionRequest) *ConnectionRequestDTO {
	return &ConnectionRequestDTO{
		ID:          row.ID,
		FromUser:    summarizeUser(row.FromUser),
		ToUser:      summarizeUser(row.ToUser),
		Note:        row.Note,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
		RespondedAt: row.RespondedAt,
	}
}
