package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/response"
)

// ReferralHandler exposes the three-party referral workflow.
type ReferralHandler struct {
	service *services.ReferralService
}

// NewReferralHandler constructs a ReferralHandler.
func NewReferralHandler(service *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{service: service}
}

type createReferralPayload struct {
	FirstDegreeID string `json:"first_degree_id" validate:"required"`
	TargetUserID  string `json:"target_user_id"`
	TargetName    string `json:"target_name" validate:"max=255"`
	TargetEmail   string `json:"target_email" validate:"omitempty,email"`
	TargetPhone   string `json:"target_phone" validate:"max=64"`
	Note          string `json:"note" validate:"max=2000"`
}

type secondDegreePayload struct {
	Action    string `json:"action" validate:"required"`
	FirstName string `json:"first_name" validate:"max=128"`
	LastName  string `json:"last_name" validate:"max=128"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=64"`
}

// List handles GET /api/referrals?role=referee|first_degree|target.
func (h *ReferralHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	role := services.ReferralRole(strings.ToLower(strings.TrimSpace(c.Query("role"))))
	items, err := h.service.ListForUser(requestContext(c), userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get handles GET /api/referrals/:id.
func (h *ReferralHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	dto, err := h.service.Get(requestContext(c), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Create handles POST /api/referrals. The caller is always the referee.
func (h *ReferralHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createReferralPayload
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.CreateReferral(requestContext(c), services.CreateReferralInput{
		RefereeID:     userID,
		FirstDegreeID: req.FirstDegreeID,
		TargetUserID:  req.TargetUserID,
		TargetName:    req.TargetName,
		TargetEmail:   req.TargetEmail,
		TargetPhone:   req.TargetPhone,
		Note:          req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// Respond handles POST /api/referrals/:id/respond for a signed-in participant.
func (h *ReferralHandler) Respond(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	action, ok := bindAction(c)
	if !ok {
		return
	}

	dto, err := h.service.Respond(requestContext(c), c.Param("id"), userID, action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// RespondByToken handles POST /api/referrals/respond/token/:token for the emailed target.
func (h *ReferralHandler) RespondByToken(c *gin.Context) {
	var req secondDegreePayload
	if !bindAndValidate(c, &req) {
		return
	}
	action, err := services.ParseResponseAction(req.Action)
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.service.RespondSecondDegree(requestContext(c), services.SecondDegreeResponseInput{
		Token:     c.Param("token"),
		Action:    action,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}
