package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/notifications"
	apperrors "github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/metrics"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID         string                  `json:"id"`
	UserID     string                  `json:"user_id"`
	Type       models.NotificationType `json:"type"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	Link       string                  `json:"link,omitempty"`
	FromUserID *string                 `json:"from_user_id,omitempty"`
	FromUser   *UserSummary            `json:"from_user,omitempty"`
	Metadata   map[string]any          `json:"metadata,omitempty"`
	IsRead     bool                    `json:"is_read"`
	ReadAt     *time.Time              `json:"read_at,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID     string
	Type       models.NotificationType
	Title      string
	Message    string
	Link       string
	FromUserID string
	Metadata   map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	Limit      int
	Offset     int
	UnreadOnly bool
}

// NotificationPage is a page of notifications plus counters for the inbox badge.
type NotificationPage struct {
	Items  []NotificationDTO `json:"items"`
	Total  int64             `json:"total"`
	Unread int64             `json:"unread"`
}

// Broadcaster pushes notification events to live subscribers.
type Broadcaster interface {
	Broadcast(userID string, event notifications.Event)
}

// NotificationOption customises the NotificationService.
type NotificationOption func(*NotificationService)

// WithNotificationClock injects a custom time source.
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NotificationService manages user in-app notifications.
type NotificationService struct {
	db  *gorm.DB
	hub Broadcaster
	now func() time.Time
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService. hub may be nil when
// realtime delivery is disabled.
func NewNotificationService(db *gorm.DB, hub Broadcaster, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	service := &NotificationService{
		db:  db,
		hub: hub,
		now: time.Now,
		log: logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create registers a new notification and broadcasts it to live subscribers.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("notification service: unknown type %q", input.Type)
	}

	notification := models.Notification{
		UserID:     userID,
		Type:       input.Type,
		Title:      strings.TrimSpace(input.Title),
		Message:    strings.TrimSpace(input.Message),
		Link:       strings.TrimSpace(input.Link),
		FromUserID: stringPtr(input.FromUserID),
	}

	if input.Metadata != nil {
		data, err := encodeJSON(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = data
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(notification.Type)).Inc()

	dto := mapNotification(notification)
	s.broadcast(userID, notifications.Event{Event: notifications.EventCreated, Notification: &dto})
	return &dto, nil
}

// Notify writes each notification, logging failures instead of returning them.
// Workflows call it after their transaction commits.
func (s *NotificationService) Notify(ctx context.Context, inputs ...CreateNotificationInput) {
	if s == nil {
		return
	}
	for _, input := range inputs {
		if strings.TrimSpace(input.UserID) == "" {
			continue
		}
		if _, err := s.Create(ctx, input); err != nil {
			s.log.Warn("notification insert failed",
				zap.String("user_id", input.UserID),
				zap.String("type", string(input.Type)),
				zap.Error(err),
			)
		}
	}
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.Session(&gorm.Session{}).
		Preload("FromUser").
		Order("created_at DESC").
		Limit(clampLimit(input.Limit)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &NotificationPage{
		Items:  mapNotificationRows(rows),
		Total:  total,
		Unread: unread,
	}, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead sets the notification read flag for a user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if !notification.IsRead {
		now := s.now().UTC()
		if err := s.db.WithContext(ctx).Model(&notification).
			Updates(map[string]any{
				"is_read": true,
				"read_at": now,
			}).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		notification.IsRead = true
		notification.ReadAt = &now
	}

	dto := mapNotification(notification)
	s.broadcast(userID, notifications.Event{
		Event:          notifications.EventRead,
		Notification:   &dto,
		NotificationID: notification.ID,
	})
	return &dto, nil
}

// MarkAllRead marks all notifications for the user as read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}

	zero := int64(0)
	s.broadcast(userID, notifications.Event{Event: notifications.EventReadAll, UnreadCount: &zero})
	return result.RowsAffected, nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	s.broadcast(userID, notifications.Event{Event: notifications.EventDeleted, NotificationID: notificationID})
	return nil
}

func (s *NotificationService) broadcast(userID string, event notifications.Event) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(userID, event)
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:         row.ID,
		UserID:     row.UserID,
		Type:       row.Type,
		Title:      row.Title,
		Message:    row.Message,
		Link:       row.Link,
		FromUserID: row.FromUserID,
		FromUser:   summarizeUser(row.FromUser),
		Metadata:   decodeJSON(row.Metadata),
		IsRead:     row.IsRead,
		ReadAt:     row.ReadAt,
		CreatedAt:  row.CreatedAt,
	}
}
