package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/introhub/internal/app"
	iauth "github.com/charlesng35/introhub/internal/auth"
	testutil "github.com/charlesng35/introhub/internal/database/testutil"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/monitoring"
)

func newTestConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Server.PublicURL = "http://intro.test"
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Features.Notifications = app.NotificationConfig{Enabled: true, Realtime: true, Email: true}
	return cfg
}

func newTestRouter(t *testing.T, cfg *app.Config) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	router, err := NewRouter(db, jwtSvc, cfg)
	require.NoError(t, err)
	return router, jwtSvc
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil)
	require.Error(t, err)
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router, _ := newTestRouter(t, newTestConfig())

	// Health should be public
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)

	// Anonymous connection status is answered, not rejected
	w := serve(router, http.MethodGet, "/api/connections/status/someone", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "not_authenticated")

	for _, path := range []string{"/api/me", "/api/notifications", "/api/referrals", "/api/introductions", "/api/contacts"} {
		require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, path, "").Code, path)
	}

	w = serve(router, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestRouter_AdminRoutesRequireAdmin(t *testing.T) {
	router, jwtSvc := newTestRouter(t, newTestConfig())

	issue := func(userType models.UserType) string {
		token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: "u-" + string(userType), UserType: string(userType)})
		require.NoError(t, err)
		return token
	}

	require.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/api/admin/users", issue(models.UserTypeReferee)).Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/admin/users", issue(models.UserTypeAdmin)).Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/admin/settings", issue(models.UserTypeAdmin)).Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	cfg := newTestConfig()
	router, _ := newTestRouter(t, cfg)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)

	w := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "introhub_"), "expected introhub metrics to be exposed")

	cfg = newTestConfig()
	cfg.Monitoring.Prometheus.Enabled = false
	router, _ = newTestRouter(t, cfg)
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics", "").Code)
}

func TestRouter_StreamRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, newTestConfig())

	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/notifications/stream", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/notifications/stream?token=bad", "").Code)
}

func TestRouter_HealthReportsMaintenanceJobs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	tracker := monitoring.NewJobTracker()
	router, err := NewRouter(db, jwtSvc, newTestConfig(), WithJobTracker(tracker))
	require.NoError(t, err)

	w := serve(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"component":"database"`)
	require.Contains(t, w.Body.String(), `"component":"realtime"`)
	require.Contains(t, w.Body.String(), `"component":"maintenance"`)

	for range 3 {
		tracker.RecordRun("token_cleanup", errors.New("disk full"), time.Millisecond)
	}
	w = serve(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "disk full")

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/live", "").Code)
}
