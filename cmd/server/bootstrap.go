package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/api"
	"github.com/charlesng35/introhub/internal/app"
	"github.com/charlesng35/introhub/internal/app/maintenance"
	iauth "github.com/charlesng35/introhub/internal/auth"
	"github.com/charlesng35/introhub/internal/cache"
	"github.com/charlesng35/introhub/internal/database"
	"github.com/charlesng35/introhub/internal/middleware"
	"github.com/charlesng35/introhub/internal/monitoring"
	"github.com/charlesng35/introhub/internal/notifications"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *notifications.Hub
	Mailer    mail.Mailer
	Cleaner   *maintenance.Cleaner
	Jobs      *monitoring.JobTracker
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime opens the database, starts background jobs and builds the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := database.LoadAPISettings(ctx, stack.DB); err != nil {
		return nil, fmt.Errorf("load api settings: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Mailer, err = initialiseMailer(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Features.Notifications.Enabled && cfg.Features.Notifications.Realtime {
		stack.Hub = notifications.NewHub()
	}

	if cfg.Maintenance.Enabled {
		stack.Jobs = monitoring.NewJobTracker()
		stack.Cleaner = maintenance.NewCleaner(stack.DB,
			maintenance.WithTracker(stack.Jobs),
			maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
			maintenance.WithNotificationSchedule(cfg.Maintenance.NotificationSchedule),
			maintenance.WithNotificationRetentionDays(cfg.Maintenance.NotificationRetentionDays),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	if cfg.Server.RateLimit.Enabled {
		stack.RateStore = newRateStore(cfg.Server.RateLimit.Store, stack.DB)
	}

	opts := []api.RouterOption{api.WithRateStore(stack.RateStore)}
	if stack.Mailer != nil {
		opts = append(opts, api.WithMailer(stack.Mailer))
	}
	if stack.Hub != nil {
		opts = append(opts, api.WithHub(stack.Hub))
	}
	if stack.Jobs != nil {
		opts = append(opts, api.WithJobTracker(stack.Jobs))
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// newRateStore picks the counter backend. The database store lets several
// instances behind a load balancer share one budget.
func newRateStore(kind string, db *gorm.DB) middleware.RateStore {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "database", "db":
		if store := cache.NewDatabaseStore(db); store != nil {
			return store
		}
	}
	return middleware.NewMemoryRateStore()
}

func initialiseMailer(cfg *app.Config, log *zap.Logger) (mail.Mailer, error) {
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; emails will not be delivered")
		return nil, nil
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	log.Info("smtp configured", zap.String("host", cfg.Email.SMTP.Host), zap.Int("port", cfg.Email.SMTP.Port))
	return mailer, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:            strings.TrimSpace(cfg.Database.Path),
		DSN:             strings.TrimSpace(cfg.Database.DSN),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite", "sqlite3":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql", "pg":
		dbCfg.Driver = "postgres"
		auth = cfg.Database.Postgres
	case "mysql", "mariadb":
		dbCfg.Driver = "mysql"
		auth = cfg.Database.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = strings.TrimSpace(auth.Password)
	dbCfg.Options = auth.Options
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
