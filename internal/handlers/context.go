package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requireUserID returns the authenticated user id or writes a 401 and returns false.
func requireUserID(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// introductionCaller builds the caller identity used to match introduction parties.
func introductionCaller(c *gin.Context) services.IntroductionCaller {
	return services.IntroductionCaller{
		UserID: c.GetString(middleware.CtxUserIDKey),
		Email:  c.GetString(middleware.CtxUserEmailKey),
	}
}
