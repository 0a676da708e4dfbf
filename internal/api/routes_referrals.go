package api

import "github.com/gin-gonic/gin"

func registerReferralRoutes(public, protected *gin.RouterGroup, throttle gin.HandlerFunc, deps *dependencies) {
	public.POST("/referrals/respond/token/:token", throttle, deps.referrals.RespondByToken)

	referrals := protected.Group("/referrals")
	{
		referrals.GET("", deps.referrals.List)
		referrals.POST("", deps.referrals.Create)
		referrals.GET("/:id", deps.referrals.Get)
		referrals.POST("/:id/respond", deps.referrals.Respond)
	}
}
