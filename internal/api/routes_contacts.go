package api

import "github.com/gin-gonic/gin"

func registerContactRoutes(protected *gin.RouterGroup, deps *dependencies) {
	contacts := protected.Group("/contacts")
	{
		contacts.GET("", deps.contacts.List)
		contacts.POST("", deps.contacts.Create)
		contacts.DELETE("/:id", deps.contacts.Delete)
	}
}
