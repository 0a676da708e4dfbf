package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/app"
	iauth "github.com/charlesng35/introhub/internal/auth"
	"github.com/charlesng35/introhub/internal/emails"
	"github.com/charlesng35/introhub/internal/handlers"
	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/models"
	"github.com/charlesng35/introhub/internal/monitoring"
	"github.com/charlesng35/introhub/internal/notifications"
	"github.com/charlesng35/introhub/internal/security"
	"github.com/charlesng35/introhub/internal/services"
	"github.com/charlesng35/introhub/internal/vault"
	"github.com/charlesng35/introhub/pkg/mail"
)

// RouterOption customises NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	mailer    mail.Mailer
	hub       *notifications.Hub
	rateStore middleware.RateStore
	tracker   *monitoring.JobTracker
}

// WithMailer sets the outbound mailer. Without one every email is skipped.
func WithMailer(m mail.Mailer) RouterOption {
	return func(o *routerOptions) {
		o.mailer = m
	}
}

// WithHub shares a notification hub with the caller.
func WithHub(hub *notifications.Hub) RouterOption {
	return func(o *routerOptions) {
		o.hub = hub
	}
}

// WithRateStore overrides the rate limiter backend.
func WithRateStore(store middleware.RateStore) RouterOption {
	return func(o *routerOptions) {
		o.rateStore = store
	}
}

// WithJobTracker exposes maintenance job history through the health endpoint.
func WithJobTracker(tracker *monitoring.JobTracker) RouterOption {
	return func(o *routerOptions) {
		o.tracker = tracker
	}
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, opts ...RouterOption) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	options := routerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.hub == nil && cfg.Features.Notifications.Realtime {
		options.hub = notifications.NewHub()
	}

	deps, err := buildDependencies(db, jwt, cfg, options)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	r.Use(middleware.CSRF(deps.cookie.Name))
	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		registerHealthRoutes(r, db, options)
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Token endpoints are unauthenticated and therefore throttled.
	throttle := func(c *gin.Context) { c.Next() }
	if cfg.Server.RateLimit.Enabled {
		throttle = middleware.RateLimit(options.rateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
	}

	public := r.Group("/api")
	public.Use(middleware.OptionalAuth(jwt, deps.cookie.Name))

	protected := r.Group("/api")
	protected.Use(middleware.Auth(jwt, deps.cookie.Name))

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireUserType(models.UserTypeAdmin))

	registerAuthRoutes(public, throttle, deps)
	registerProfileRoutes(public, protected, deps)
	registerContactRoutes(protected, deps)
	registerConnectionRoutes(public, protected, throttle, deps)
	registerReferralRoutes(public, protected, throttle, deps)
	registerIntroductionRoutes(protected, deps)
	registerNotificationRoutes(r, protected, deps)
	registerAdminRoutes(admin, deps)

	return r, nil
}

type dependencies struct {
	cookie handlers.SessionCookie

	auth          *handlers.AuthHandler
	profiles      *handlers.ProfileHandler
	contacts      *handlers.ContactHandler
	connections   *handlers.ConnectionHandler
	referrals     *handlers.ReferralHandler
	introductions *handlers.IntroductionHandler
	notifications *handlers.NotificationHandler
	admin         *handlers.AdminHandler
}

func buildDependencies(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, options routerOptions) (*dependencies, error) {
	var settingsOpts []services.SettingsOption
	if key := cfg.Auth.SecretSealingKey(); key != "" {
		sealer, err := vault.NewSealer(key)
		if err != nil {
			return nil, fmt.Errorf("settings sealer: %w", err)
		}
		settingsOpts = append(settingsOpts, services.WithSecretSealer(sealer))
	}
	settings, err := services.NewSettingsService(db, settingsOpts...)
	if err != nil {
		return nil, err
	}

	sender := emails.NewSender(options.mailer,
		emails.WithBaseURL(cfg.Server.PublicURL),
		emails.WithSettings(settings),
	)

	var notifier services.EmailNotifier
	if cfg.Features.Notifications.Email {
		notifier = sender
	}

	var broadcaster services.Broadcaster
	if options.hub != nil {
		broadcaster = options.hub
	}

	notificationSvc, err := services.NewNotificationService(db, broadcaster)
	if err != nil {
		return nil, err
	}

	// Workflows write inbox entries only while notifications are enabled.
	workflowNotifications := notificationSvc
	if !cfg.Features.Notifications.Enabled {
		workflowNotifications = nil
	}

	connectionSvc, err := services.NewConnectionService(db, workflowNotifications, notifier,
		services.WithConnectionTokenTTL(cfg.Workflow.ConnectionTokenTTL))
	if err != nil {
		return nil, err
	}
	referralSvc, err := services.NewReferralService(db, workflowNotifications, notifier,
		services.WithReferralTokenTTL(cfg.Workflow.ReferralTokenTTL))
	if err != nil {
		return nil, err
	}
	introductionSvc, err := services.NewIntroductionService(db, workflowNotifications, notifier)
	if err != nil {
		return nil, err
	}
	contactSvc, err := services.NewContactService(db)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}

	// Sign-in links are sent even when notification emails are switched off.
	magic, err := iauth.NewMagicLinkService(db, jwt, sender, cfg.Auth.MagicLinkServiceConfig())
	if err != nil {
		return nil, err
	}

	cookie := handlers.SessionCookie{
		Name:   cfg.Server.Cookie.Name,
		Domain: cfg.Server.Cookie.Domain,
		Secure: cfg.Server.Cookie.Secure,
	}
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultSessionCookie
	}

	return &dependencies{
		cookie:        cookie,
		auth:          handlers.NewAuthHandler(magic, cookie),
		profiles:      handlers.NewProfileHandler(userSvc),
		contacts:      handlers.NewContactHandler(contactSvc),
		connections:   handlers.NewConnectionHandler(connectionSvc),
		referrals:     handlers.NewReferralHandler(referralSvc),
		introductions: handlers.NewIntroductionHandler(introductionSvc),
		notifications: handlers.NewNotificationHandler(notificationSvc, options.hub, jwt, cookie.Name),
		admin:         handlers.NewAdminHandler(userSvc, settings, security.NewAuditService(db, cfg)),
	}, nil
}
