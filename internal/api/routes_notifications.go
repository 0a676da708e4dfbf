package api

import "github.com/gin-gonic/gin"

func registerNotificationRoutes(r *gin.Engine, protected *gin.RouterGroup, deps *dependencies) {
	// The stream authenticates itself since browsers cannot set WebSocket headers.
	r.GET("/api/notifications/stream", deps.notifications.Stream)

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", deps.notifications.List)
		notifications.GET("/unread-count", deps.notifications.UnreadCount)
		notifications.POST("/read-all", deps.notifications.MarkAllRead)
		notifications.POST("/:id/read", deps.notifications.MarkRead)
		notifications.DELETE("/:id", deps.notifications.Delete)
	}
}
