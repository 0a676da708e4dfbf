package api

import "github.com/gin-gonic/gin"

func registerAuthRoutes(public *gin.RouterGroup, throttle gin.HandlerFunc, deps *dependencies) {
	auth := public.Group("/auth")
	{
		auth.POST("/magic-link", throttle, deps.auth.RequestLink)
		auth.POST("/magic-link/verify", throttle, deps.auth.Verify)
		auth.POST("/logout", deps.auth.Logout)
	}
}
