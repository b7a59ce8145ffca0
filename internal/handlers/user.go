package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/athlosone/athlos-server/internal/services"
	appErrors "github.com/athlosone/athlos-server/pkg/errors"
	"github.com/athlosone/athlos-server/pkg/response"
)

// UserHandler serves profile, onboarding and tour state for the signed-in account.
type UserHandler struct {
	profiles *services.ProfileService
}

// NewUserHandler wires the handler with the profile service.
func NewUserHandler(profiles *services.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// GET /api/user/profile
func (h *UserHandler) Profile(c *gin.Context) {
	email, ok := emailFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, err := h.profiles.Get(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, account)
}

// POST /api/user/onboarding
func (h *UserHandler) Onboarding(c *gin.Context) {
	email, ok := emailFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input services.OnboardingUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}

	account, err := h.profiles.UpdateOnboarding(c.Request.Context(), email, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, account)
}

// PATCH /api/user/tour
func (h *UserHandler) Tour(c *gin.Context) {
	email, ok := emailFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, err := h.profiles.MarkTourSeen(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"has_seen_tour_modal": account.HasSeenTourModal,
	})
}
