package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/response"
)

// ProfileHandler serves business cards, the caller's own profile and user search.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

type updateProfilePayload struct {
	Username         *string           `json:"username"`
	FirstName        *string           `json:"first_name" validate:"omitempty,max=128"`
	LastName         *string           `json:"last_name" validate:"omitempty,max=128"`
	Phone            *string           `json:"phone" validate:"omitempty,max=64"`
	Headline         *string           `json:"headline" validate:"omitempty,max=255"`
	Bio              *string           `json:"bio" validate:"omitempty,max=4000"`
	Company          *string           `json:"company" validate:"omitempty,max=255"`
	Location         *string           `json:"location" validate:"omitempty,max=255"`
	AvatarURL        *string           `json:"avatar_url" validate:"omitempty,url"`
	StatementSummary *string           `json:"statement_summary" validate:"omitempty,max=4000"`
	SocialLinks      map[string]string `json:"social_links" validate:"omitempty,dive,url"`
}

// Me handles GET /api/me.
func (h *ProfileHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	profile, err := h.users.GetMe(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// UpdateMe handles PATCH /api/me.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updateProfilePayload
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		Username:         req.Username,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		Headline:         req.Headline,
		Bio:              req.Bio,
		Company:          req.Company,
		Location:         req.Location,
		AvatarURL:        req.AvatarURL,
		StatementSummary: req.StatementSummary,
		SocialLinks:      req.SocialLinks,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// PublicProfile handles GET /api/profiles/:username. Contact details are only
// included for the owner and their connections.
func (h *ProfileHandler) PublicProfile(c *gin.Context) {
	profile, err := h.users.GetPublicProfile(requestContext(c), c.Param("username"), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// Search handles GET /api/users/search?q=.
func (h *ProfileHandler) Search(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	results, err := h.users.Search(requestContext(c), c.Query("q"), userID, parseIntQuery(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, results)
}
