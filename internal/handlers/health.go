package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/introhub/internal/monitoring"
	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/response"
)

// Liveness answers as long as the process can serve HTTP.
func Liveness(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": monitoring.StatusUp})
}

// Health runs every registered probe. Degraded components still answer 200;
// any component that is down turns the response into a 503.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			Liveness(c)
			return
		}

		report := manager.Evaluate(requestContext(c))
		if !report.Healthy() {
			logger.WithModule("health").Warn("health check failed", zap.Any("checks", report.Checks))
			c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: report})
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
