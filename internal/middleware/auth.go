package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/introhub/internal/auth"
	"github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxUserTypeKey  = "userType"
	CtxUserEmailKey = "userEmail"

	// DefaultSessionCookie is used when no cookie name is configured.
	DefaultSessionCookie = "introhub_session"
)

// Auth enforces JWT authentication. The token is read from the Authorization
// bearer header first and falls back to the session cookie.
func Auth(jwt *iauth.JWTService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerOrCookie(c, cookieName)
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller identity when a valid token is present and
// lets anonymous requests through untouched.
func OptionalAuth(jwt *iauth.JWTService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerOrCookie(c, cookieName); token != "" {
			if claims, err := jwt.ValidateAccessToken(token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *iauth.Claims) {
	c.Set(CtxClaimsKey, claims)
	c.Set(CtxUserIDKey, claims.UserID)
	c.Set(CtxUserTypeKey, claims.UserType)
	if claims.Email != "" {
		c.Set(CtxUserEmailKey, claims.Email)
	}
}

func bearerOrCookie(c *gin.Context, cookieName string) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}

	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if value, err := c.Cookie(cookieName); err == nil {
		return strings.TrimSpace(value)
	}
	return ""
}
