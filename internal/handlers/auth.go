package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/introhub/internal/auth"
	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/pkg/response"
)

// SessionCookie describes the cookie used to carry the access token for browser clients.
type SessionCookie struct {
	Name   string
	Domain string
	Secure bool
}

// AuthHandler manages the passwordless sign-in flow.
type AuthHandler struct {
	magic  *iauth.MagicLinkService
	cookie SessionCookie
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(magic *iauth.MagicLinkService, cookie SessionCookie) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultSessionCookie
	}
	return &AuthHandler{magic: magic, cookie: cookie}
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// RequestLink handles POST /api/auth/magic-link. The response is identical for
// new and existing accounts.
func (h *AuthHandler) RequestLink(c *gin.Context) {
	var req magicLinkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.magic.Request(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"sent": true})
}

// Verify handles POST /api/auth/magic-link/verify.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.magic.Consume(requestContext(c), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, session.AccessToken, time.Until(session.ExpiresAt))

	response.Success(c, http.StatusOK, gin.H{
		"access_token": session.AccessToken,
		"expires_at":   session.ExpiresAt,
		"user":         session.User,
	})
}

// Logout handles POST /api/auth/logout by expiring the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -time.Second)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if value == "" {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure || middleware.IsSecureRequest(c.Request),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
