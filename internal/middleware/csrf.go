package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/introhub/pkg/crypto"
	"github.com/charlesng35/introhub/pkg/errors"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/response"
)

const (
	// CSRFCookieName is the cookie used to transport the CSRF token to clients.
	CSRFCookieName = "introhub_csrf"
	// CSRFHeaderName is the header clients must present for unsafe HTTP methods.
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenLength  = 48
	csrfCookieMaxAge = 12 * 60 * 60 // 12 hours
	csrfLoggerModule = "csrf"
)

var unsafeMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// CSRF implements the double-submit-cookie pattern for browser clients that
// authenticate with the session cookie. Safe methods receive a token via cookie
// and header; mutating requests carrying the session cookie must echo it back
// in X-CSRF-Token. Bearer-authenticated and anonymous requests are not checked.
func CSRF(sessionCookie string) gin.HandlerFunc {
	if sessionCookie == "" {
		sessionCookie = DefaultSessionCookie
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodOptions {
			c.Next()
			return
		}

		token, issued, err := ensureCSRFCookie(c)
		if err != nil {
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
			return
		}

		if !isUnsafeMethod(method) {
			c.Header(CSRFHeaderName, token)
			c.Next()
			return
		}

		if !cookieAuthenticated(c, sessionCookie) {
			c.Next()
			return
		}

		headerToken := strings.TrimSpace(c.GetHeader(CSRFHeaderName))
		if headerToken == "" || !constantTimeEqual(token, headerToken) {
			logger.WithModule(csrfLoggerModule).Warn("csrf validation failed",
				zap.String("method", method),
				zap.String("path", c.FullPath()),
				zap.Bool("cookie_issued", issued),
			)
			response.Error(c, errors.ErrCSRFInvalid)
			c.Abort()
			return
		}

		c.Next()
	}
}

func cookieAuthenticated(c *gin.Context, sessionCookie string) bool {
	if authz := c.GetHeader("Authorization"); len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return false
	}
	value, err := c.Cookie(sessionCookie)
	return err == nil && value != ""
}

func ensureCSRFCookie(c *gin.Context) (token string, issued bool, err error) {
	if existing, err := c.Cookie(CSRFCookieName); err == nil && len(existing) > 0 {
		setCSRFCookie(c, existing)
		return existing, false, nil
	}

	token, err = crypto.GenerateToken(csrfTokenLength)
	if err != nil {
		return "", false, err
	}
	setCSRFCookie(c, token)
	return token, true, nil
}

func setCSRFCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   IsSecureRequest(c.Request),
		HttpOnly: false,
		MaxAge:   csrfCookieMaxAge,
		SameSite: http.SameSiteStrictMode,
	})
}

// IsSecureRequest reports whether the request arrived over TLS directly or via
// a proxy that set X-Forwarded-Proto.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	return strings.EqualFold(scheme, "https")
}

func isUnsafeMethod(method string) bool {
	_, ok := unsafeMethods[method]
	return ok
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
