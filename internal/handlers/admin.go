package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/security"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/response"
)

// AdminHandler backs the admin back-office: user management, API settings
// and the deployment audit.
type AdminHandler struct {
	users    *services.UserService
	settings *services.SettingsService
	audit    *security.AuditService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(users *services.UserService, settings *services.SettingsService, audit *security.AuditService) *AdminHandler {
	return &AdminHandler{users: users, settings: settings, audit: audit}
}

type changeTypePayload struct {
	UserType string `json:"user_type" validate:"required"`
}

type updateSettingsPayload struct {
	SiteName             *string `json:"site_name" validate:"omitempty,max=128"`
	PublicBaseURL        *string `json:"public_base_url"`
	EmailFromName        *string `json:"email_from_name" validate:"omitempty,max=128"`
	EmailFromAddress     *string `json:"email_from_address"`
	SupportEmail         *string `json:"support_email"`
	LinkedInClientID     *string `json:"linkedin_client_id" validate:"omitempty,max=255"`
	LinkedInClientSecret *string `json:"linkedin_client_secret" validate:"omitempty,max=255"`
	LinkedInRedirectURL  *string `json:"linkedin_redirect_url"`
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	opts := services.ListUsersOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Query:    c.Query("q"),
	}
	if raw := strings.TrimSpace(c.Query("user_type")); raw != "" {
		userType, err := models.ParseUserType(raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest(err.Error()))
			return
		}
		opts.UserType = userType
	}

	users, total, err := h.users.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, &response.Meta{
		Limit:  opts.PageSize,
		Offset: (max(opts.Page, 1) - 1) * opts.PageSize,
		Total:  total,
	})
}

// ChangeUserType handles PATCH /api/admin/users/:id/type.
func (h *AdminHandler) ChangeUserType(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req changeTypePayload
	if !bindAndValidate(c, &req) {
		return
	}
	userType, err := models.ParseUserType(req.UserType)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	profile, err := h.users.ChangeType(requestContext(c), actorID, c.Param("id"), userType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// DeleteUser handles DELETE /api/admin/users/:id.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.users.Delete(requestContext(c), actorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GetSettings handles GET /api/admin/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Current(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/admin/settings.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updateSettingsPayload
	if !bindAndValidate(c, &req) {
		return
	}

	settings, err := h.settings.Update(requestContext(c), actorID, services.UpdateSettingsInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// SecurityAudit handles GET /api/admin/security-audit.
func (h *AdminHandler) SecurityAudit(c *gin.Context) {
	if h.audit == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, h.audit.Run(requestContext(c)))
}
