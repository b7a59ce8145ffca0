package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/middleware"
	appErrors "github.com/athlosone/athlos-server/pkg/errors"
	"github.com/athlosone/athlos-server/pkg/response"
)

// GuardHandler lets clients ask whether a path is reachable for their session
// before navigating, sharing the decision logic with the server-side guard.
type GuardHandler struct {
	jwt *iauth.JWTService
}

// NewGuardHandler wires the handler with the JWT service.
func NewGuardHandler(jwt *iauth.JWTService) *GuardHandler {
	return &GuardHandler{jwt: jwt}
}

// GET /api/guard/route?path=/dashboard
func (h *GuardHandler) RouteCheck(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.Error(c, appErrors.NewBadRequest("path is required"))
		return
	}

	var hasToken, onboardingComplete bool
	if token := middleware.BearerToken(c); token != "" {
		if claims, err := h.jwt.ValidateAccessToken(token); err == nil {
			hasToken = true
			onboardingComplete = claims.OnboardingComplete
		}
	}

	decision := middleware.EvaluateRoute(hasToken, onboardingComplete, path)
	response.Success(c, http.StatusOK, decision)
}
