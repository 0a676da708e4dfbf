package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/api"
	"github.com/charlesng35/introhub/internal/app"
	iauth "github.com/charlesng35/introhub/internal/auth"
	sharedtestutil "github.com/charlesng35/introhub/internal/database/testutil"
	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/pkg/response"
)

// SessionCookieName is the session cookie configured for handler tests.
const SessionCookieName = "introhub_test_session"

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Mailer     *emails.RecordingMailer
	Config     *app.Config
	csrfToken  string
	csrfCookie *http.Cookie
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Server: app.ServerConfig{
			PublicURL: "http://intro.test",
			Cookie:    app.CookieConfig{Name: SessionCookieName},
			RateLimit: app.RateLimitConfig{Enabled: false},
		},
		Monitoring: app.MonitoringConfig{
			Health: app.HealthConfig{Enabled: true},
		},
		Features: app.FeatureConfig{
			Notifications: app.NotificationConfig{Enabled: true, Realtime: true, Email: true},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	mailer := &emails.RecordingMailer{}
	router, err := api.NewRouter(db, jwtSvc, cfg, api.WithMailer(mailer), api.WithRateStore(middleware.NewMemoryRateStore()))
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Mailer: mailer,
		Config: cfg,
	}
}

// CreateUser inserts a registered user with a random username and returns the record.
func (e *Env) CreateUser(firstName string, userType models.UserType) *models.User {
	e.T.Helper()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	email := strings.ToLower(firstName) + "-" + suffix + "@example.com"
	username := strings.ToLower(firstName) + "-" + suffix

	user := &models.User{
		Email:     &email,
		Username:  &username,
		FirstName: firstName,
		LastName:  "Tester",
		Phone:     "+1 555 0100",
		UserType:  userType,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// TokenFor issues an access token for user without going through the email flow.
func (e *Env) TokenFor(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		UserType: string(user.UserType),
		Email:    user.EmailAddress(),
	})
	require.NoError(e.T, err)
	return token
}

// LastLinkToken extracts the token from the newest email sent to address.
func (e *Env) LastLinkToken(address string) string {
	e.T.Helper()

	messages := e.Mailer.SentTo(address)
	require.NotEmpty(e.T, messages, "no email sent to %s", address)
	match := tokenPattern.FindStringSubmatch(messages[len(messages)-1].Body)
	require.Len(e.T, match, 2, "no token link in email to %s", address)
	return match[1]
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.do(e.newRequest(method, path, body, token))
}

// RequestWithSession authenticates with the session cookie instead of a bearer
// token, attaching the CSRF token for unsafe methods the way a browser client would.
func (e *Env) RequestWithSession(method, path string, body any, session string) *httptest.ResponseRecorder {
	e.T.Helper()

	req := e.newRequest(method, path, body, "")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session})
	if requiresCSRFAttestation(method) {
		e.ensureCSRFToken()
		req.AddCookie(e.csrfCookie)
		req.Header.Set(middleware.CSRFHeaderName, e.csrfToken)
	}
	return e.do(req)
}

func (e *Env) newRequest(method, path string, body any, token string) *http.Request {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *Env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	e.captureCSRF(w.Result())
	return w
}

func (e *Env) ensureCSRFToken() {
	if e.csrfToken != "" && e.csrfCookie != nil {
		return
	}
	resp := e.do(e.newRequest(http.MethodGet, "/health", nil, ""))
	require.Equal(e.T, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(e.T, e.csrfCookie)
}

func (e *Env) captureCSRF(resp *http.Response) {
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(middleware.CSRFHeaderName); token != "" {
		e.csrfToken = token
	}
	for _, c := range resp.Cookies() {
		if c.Name == middleware.CSRFCookieName {
			// Clone to avoid unintended mutations between tests
			e.csrfCookie = &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				MaxAge:   c.MaxAge,
				Secure:   c.Secure,
				HttpOnly: c.HttpOnly,
				SameSite: c.SameSite,
			}
			break
		}
	}
}

func requiresCSRFAttestation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
