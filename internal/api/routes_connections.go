package api

import "github.com/gin-gonic/gin"

func registerConnectionRoutes(public, protected *gin.RouterGroup, throttle gin.HandlerFunc, deps *dependencies) {
	// Emailed review links work without a session.
	public.GET("/connections/requests/token/:token", throttle, deps.connections.GetByToken)
	public.POST("/connections/requests/token/:token/respond", throttle, deps.connections.RespondByToken)
	public.GET("/connections/status/:userID", deps.connections.Status)

	connections := protected.Group("/connections")
	{
		connections.GET("", deps.connections.List)
		connections.DELETE("/:userID", deps.connections.Remove)
		connections.GET("/requests", deps.connections.ListRequests)
		connections.POST("/requests", deps.connections.CreateRequest)
		connections.POST("/requests/:id/respond", deps.connections.Respond)
	}
}
