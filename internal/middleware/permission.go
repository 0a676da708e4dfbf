package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/response"
)

// RequireUserType allows the request through only when the authenticated
// caller holds one of the given user types. It must run after Auth.
func RequireUserType(allowed ...models.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxUserIDKey) == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		current := models.UserType(c.GetString(CtxUserTypeKey))
		for _, t := range allowed {
			if current == t {
				c.Next()
				return
			}
		}

		response.Error(c, errors.ErrForbidden)
		c.Abort()
	}
}
