package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/introhub/internal/auth"
	"github.com/charlesng35/introhub/internal/models"
)

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)
	return jwtSvc
}

func issueToken(t *testing.T, jwtSvc *iauth.JWTService, userType models.UserType) string {
	t.Helper()

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   "user-123",
		UserType: string(userType),
		Email:    "ada@example.com",
	})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc := newTestJWT(t)
	token := issueToken(t, jwtSvc, models.UserTypeReferee)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, ""), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   c.GetString(CtxUserIDKey),
			"user_type": c.GetString(CtxUserTypeKey),
			"email":     c.GetString(CtxUserEmailKey),
		})
	})

	// Missing credentials -> 401
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token -> 401
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	// Valid bearer token -> downstream handler executes
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-123", payload["user_id"])
	require.Equal(t, "REFEREE", payload["user_type"])
	require.Equal(t, "ada@example.com", payload["email"])

	// Session cookie works as well
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc := newTestJWT(t)
	token := issueToken(t, jwtSvc, models.UserTypeReferee)

	r := gin.New()
	r.GET("/maybe", OptionalAuth(jwtSvc, "custom_session"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/maybe", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.AddCookie(&http.Cookie{Name: "custom_session", Value: token})
	r.ServeHTTP(w, req)
	require.Equal(t, "user-123", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("Authorization", "Bearer broken")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())
}

func TestRequireUserType(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc := newTestJWT(t)

	r := gin.New()
	r.GET("/admin", Auth(jwtSvc, ""), RequireUserType(models.UserTypeAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for userType, expected := range map[models.UserType]int{
		models.UserTypeAdmin:   http.StatusOK,
		models.UserTypeReferee: http.StatusForbidden,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtSvc, userType))
		r.ServeHTTP(w, req)
		require.Equal(t, expected, w.Code, string(userType))
	}

	bare := gin.New()
	bare.GET("/admin", RequireUserType(models.UserTypeAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
