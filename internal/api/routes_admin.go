package api

import "github.com/gin-gonic/gin"

func registerAdminRoutes(admin *gin.RouterGroup, deps *dependencies) {
	users := admin.Group("/users")
	{
		users.GET("", deps.admin.ListUsers)
		users.PATCH("/:id/type", deps.admin.ChangeUserType)
		users.DELETE("/:id", deps.admin.DeleteUser)
	}

	admin.GET("/settings", deps.admin.GetSettings)
	admin.PUT("/settings", deps.admin.UpdateSettings)
	admin.GET("/security-audit", deps.admin.SecurityAudit)
}
