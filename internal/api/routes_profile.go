package api

import "github.com/gin-gonic/gin"

func registerProfileRoutes(public, protected *gin.RouterGroup, deps *dependencies) {
	public.GET("/profiles/:username", deps.profiles.PublicProfile)

	protected.GET("/me", deps.profiles.Me)
	protected.PATCH("/me", deps.profiles.UpdateMe)
	protected.GET("/users/search", deps.profiles.Search)
}
