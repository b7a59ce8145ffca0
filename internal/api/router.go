package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/auth/providers"
	"github.com/athlosone/athlos-server/internal/cache"
	"github.com/athlosone/athlos-server/internal/handlers"
	"github.com/athlosone/athlos-server/internal/middleware"
	"github.com/athlosone/athlos-server/internal/services"
)

// Deps bundles the services the router wires into handlers.
type Deps struct {
	DB           *gorm.DB
	JWT          *iauth.JWTService
	Sessions     *iauth.SessionService
	Verification *services.VerificationService
	Profiles     *services.ProfileService
	Local        *providers.LocalProvider
	Google       *providers.GoogleProvider
	CacheStore   cache.Store
	RateStore    middleware.RateStore

	// SignupRateLimit caps passcode-issuing endpoints per IP and window.
	SignupRateLimit  int
	SignupRateWindow time.Duration

	AllowedOrigins []string
	CookieSecure   bool
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Verification == nil {
		return nil, fmt.Errorf("verification service must be provided")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile service must be provided")
	}
	if deps.Local == nil {
		return nil, fmt.Errorf("local provider must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: deps.AllowedOrigins}))

	// Health endpoint (public)
	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/health", healthHandler.Health)

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Verification, deps.Local, deps.Sessions, deps.CookieSecure)
	userHandler := handlers.NewUserHandler(deps.Profiles)
	guardHandler := handlers.NewGuardHandler(deps.JWT)

	var ssoHandler *handlers.SSOHandler
	if deps.Google != nil && deps.CacheStore != nil {
		ssoHandler = handlers.NewSSOHandler(deps.Google, deps.Sessions, deps.CacheStore, authHandler)
	}

	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")
	api.Use(requireAuth)

	registerAuthRoutes(r, api, authRouteDeps{
		AuthHandler: authHandler,
		SSOHandler:  ssoHandler,
		RateStore:   deps.RateStore,
		RateLimit:   deps.SignupRateLimit,
		RateWindow:  deps.SignupRateWindow,
	})
	registerUserRoutes(r, api, userRouteDeps{
		UserHandler:  userHandler,
		GuardHandler: guardHandler,
	})

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Page guard plus NotFound fallback for everything else
	guard := middleware.OnboardingGuard(deps.JWT)
	r.NoRoute(func(c *gin.Context) {
		guard(c)
		if c.IsAborted() {
			return
		}
		middleware.NotFoundHandler(c)
	})

	return r, nil
}
