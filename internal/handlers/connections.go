package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/response"
)

// ConnectionHandler exposes connection requests and the connection list.
type ConnectionHandler struct {
	service *services.ConnectionService
}

// NewConnectionHandler constructs a ConnectionHandler.
func NewConnectionHandler(service *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

type connectionRequestPayload struct {
	ToUserID string `json:"to_user_id" validate:"required"`
	Note     string `json:"note" validate:"max=1000"`
}

type respondPayload struct {
	Action string `json:"action" validate:"required"`
}

// List handles GET /api/connections.
func (h *ConnectionHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	items, err := h.service.ListConnections(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Remove handles DELETE /api/connections/:userID.
func (h *ConnectionHandler) Remove(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.service.RemoveConnection(requestContext(c), userID, strings.TrimSpace(c.Param("userID"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Status handles GET /api/connections/status/:userID. Anonymous callers get not_authenticated.
func (h *ConnectionHandler) Status(c *gin.Context) {
	result, err := h.service.GetConnectionStatus(requestContext(c), c.GetString(middleware.CtxUserIDKey), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// CreateRequest handles POST /api/connections/requests.
func (h *ConnectionHandler) CreateRequest(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req connectionRequestPayload
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.RequestConnection(requestContext(c), userID, req.ToUserID, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.AutoAccepted {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// ListRequests handles GET /api/connections/requests?direction=incoming|outgoing.
func (h *ConnectionHandler) ListRequests(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	direction := services.RequestDirection(strings.ToLower(strings.TrimSpace(c.Query("direction"))))
	items, err := h.service.ListRequests(requestContext(c), userID, direction)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Respond handles POST /api/connections/requests/:id/respond for the signed-in recipient.
func (h *ConnectionHandler) Respond(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	action, ok := bindAction(c)
	if !ok {
		return
	}

	dto, err := h.service.RespondByID(requestContext(c), c.Param("id"), userID, action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// GetByToken handles GET /api/connections/requests/token/:token for the emailed review page.
func (h *ConnectionHandler) GetByToken(c *gin.Context) {
	dto, err := h.service.GetRequestByToken(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// RespondByToken handles POST /api/connections/requests/token/:token/respond.
func (h *ConnectionHandler) RespondByToken(c *gin.Context) {
	action, ok := bindAction(c)
	if !ok {
		return
	}

	dto, err := h.service.RespondByToken(requestContext(c), c.Param("token"), action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

func bindAction(c *gin.Context) (services.ResponseAction, bool) {
	var req respondPayload
	if !bindAndValidate(c, &req) {
		return "", false
	}
	action, err := services.ParseResponseAction(req.Action)
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return action, true
}
