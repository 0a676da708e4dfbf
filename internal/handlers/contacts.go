package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/response"
)

// ContactHandler exposes the private address book.
type ContactHandler struct {
	service *services.ContactService
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(service *services.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

type addContactPayload struct {
	Name       string `json:"name" validate:"max=255"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=64"`
	Notes      string `json:"notes" validate:"max=2000"`
	DegreeType string `json:"degree_type" validate:"omitempty,oneof=FIRST_DEGREE SECOND_DEGREE"`
}

// List handles GET /api/contacts?degree=FIRST_DEGREE|SECOND_DEGREE.
func (h *ContactHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	degree := models.DegreeType(strings.ToUpper(strings.TrimSpace(c.Query("degree"))))
	items, err := h.service.List(requestContext(c), userID, degree)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Create handles POST /api/contacts.
func (h *ContactHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req addContactPayload
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.Add(requestContext(c), services.AddContactInput{
		OwnerID:    userID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Notes:      req.Notes,
		DegreeType: models.DegreeType(req.DegreeType),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// Delete handles DELETE /api/contacts/:id.
func (h *ContactHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
