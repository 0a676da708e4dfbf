package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/response"
)

// IntroductionHandler exposes mutual opt-in introductions.
type IntroductionHandler struct {
	service *services.IntroductionService
}

// NewIntroductionHandler constructs an IntroductionHandler.
func NewIntroductionHandler(service *services.IntroductionService) *IntroductionHandler {
	return &IntroductionHandler{service: service}
}

type introductionPartyPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email" validate:"omitempty,email"`
	Name   string `json:"name" validate:"max=255"`
}

type createIntroductionPayload struct {
	PersonA introductionPartyPayload `json:"person_a"`
	PersonB introductionPartyPayload `json:"person_b"`
	Note    string                   `json:"note" validate:"max=2000"`
}

// List handles GET /api/introductions.
func (h *IntroductionHandler) List(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	caller := introductionCaller(c)
	items, err := h.service.ListForUser(requestContext(c), caller.UserID, caller.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get handles GET /api/introductions/:id.
func (h *IntroductionHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	dto, err := h.service.Get(requestContext(c), c.Param("id"), introductionCaller(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Create handles POST /api/introductions. The caller becomes the introducer.
func (h *IntroductionHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createIntroductionPayload
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.Create(requestContext(c), services.CreateIntroductionInput{
		IntroducerID: userID,
		PersonA:      services.IntroductionParty(req.PersonA),
		PersonB:      services.IntroductionParty(req.PersonB),
		Note:         req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// Respond handles POST /api/introductions/:id/respond.
func (h *IntroductionHandler) Respond(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	action, ok := bindAction(c)
	if !ok {
		return
	}

	result, err := h.service.Respond(requestContext(c), c.Param("id"), introductionCaller(c), action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
