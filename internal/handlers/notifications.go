package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/introhub/internal/auth"
	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/notifications"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service    *services.NotificationService
	hub        *notifications.Hub
	jwt        *iauth.JWTService
	cookieName string
}

// NewNotificationHandler constructs a notification handler. hub may be nil when
// realtime delivery is disabled.
func NewNotificationHandler(service *services.NotificationService, hub *notifications.Hub, jwt *iauth.JWTService, cookieName string) *NotificationHandler {
	return &NotificationHandler{
		service:    service,
		hub:        hub,
		jwt:        jwt,
		cookieName: cookieName,
	}
}

// List returns notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	page, err := h.service.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID:     userID,
		Limit:      limit,
		Offset:     offset,
		UnreadOnly: strings.EqualFold(c.Query("unread"), "true"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  page.Total,
		Unread: page.Unread,
	})
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// MarkRead flags a single notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	dto, err := h.service.MarkRead(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks all notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete removes a notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), userID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Stream upgrades the connection to a WebSocket for notification streaming.
// Browsers cannot set headers on WebSocket requests, so the access token is
// also accepted from the token query parameter or the session cookie.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" {
		name := h.cookieName
		if name == "" {
			name = middleware.DefaultSessionCookie
		}
		if value, err := c.Cookie(name); err == nil {
			token = strings.TrimSpace(value)
		}
	}

	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil || strings.TrimSpace(claims.UserID) == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	h.hub.Serve(claims.UserID, c.Writer, c.Request)
}
