package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/athlosone/athlos-server/internal/handlers"
	"github.com/athlosone/athlos-server/internal/middleware"
)

type authRouteDeps struct {
	AuthHandler *handlers.AuthHandler
	SSOHandler  *handlers.SSOHandler
	RateStore   middleware.RateStore
	RateLimit   int
	RateWindow  time.Duration
}

func registerAuthRoutes(engine *gin.Engine, api *gin.RouterGroup, deps authRouteDeps) {
	// Passcode-issuing endpoints are throttled; login and refresh are not,
	// since wrong passwords never trigger email delivery.
	limited := middleware.RateLimit(deps.RateStore, deps.RateLimit, deps.RateWindow)

	auth := engine.Group("/api/auth")
	{
		auth.POST("/signup", limited, deps.AuthHandler.Signup)
		auth.POST("/resend-otp", limited, deps.AuthHandler.ResendOTP)
		auth.POST("/verify-otp", deps.AuthHandler.VerifyOTP)
		auth.POST("/login", deps.AuthHandler.Login)
		auth.POST("/refresh", deps.AuthHandler.Refresh)

		if deps.SSOHandler != nil {
			auth.GET("/google/login", deps.SSOHandler.GoogleBegin)
			auth.GET("/google/callback", deps.SSOHandler.GoogleCallback)
		}
	}

	api.GET("/auth/me", deps.AuthHandler.Me)
	api.POST("/auth/logout", deps.AuthHandler.Logout)
}
