package api

import (
	"github.com/gin-gonic/gin"

	"github.com/athlosone/athlos-server/internal/handlers"
)

type userRouteDeps struct {
	UserHandler  *handlers.UserHandler
	GuardHandler *handlers.GuardHandler
}

func registerUserRoutes(engine *gin.Engine, api *gin.RouterGroup, deps userRouteDeps) {
	user := api.Group("/user")
	{
		user.GET("/profile", deps.UserHandler.Profile)
		user.POST("/onboarding", deps.UserHandler.Onboarding)
		user.PATCH("/tour", deps.UserHandler.Tour)
	}

	// Public: signed-out clients also ask where they may navigate.
	engine.GET("/api/guard/route", deps.GuardHandler.RouteCheck)
}
