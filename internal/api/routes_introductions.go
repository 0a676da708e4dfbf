package api

import "github.com/gin-gonic/gin"

func registerIntroductionRoutes(protected *gin.RouterGroup, deps *dependencies) {
	intros := protected.Group("/introductions")
	{
		intros.GET("", deps.introductions.List)
		intros.POST("", deps.introductions.Create)
		intros.GET("/:id", deps.introductions.Get)
		intros.POST("/:id/respond", deps.introductions.Respond)
	}
}
