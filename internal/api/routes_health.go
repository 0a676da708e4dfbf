package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/introhub/internal/handlers"
	"github.com/charlesng35/introhub/internal/monitoring"
	"github.com/charlesng35/introhub/internal/monitoring/checks"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, options routerOptions) {
	manager := monitoring.NewHealthManager(0)
	manager.Register(checks.Database(db))
	if options.hub != nil {
		manager.Register(checks.Realtime(options.hub))
	}
	if options.tracker != nil {
		manager.Register(checks.Maintenance(options.tracker, 0))
	}

	r.GET("/health", handlers.Health(manager))
	r.GET("/health/live", handlers.Liveness)
}
