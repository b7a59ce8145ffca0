package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/auth/providers"
	"github.com/athlosone/athlos-server/internal/cache"
	appErrors "github.com/athlosone/athlos-server/pkg/errors"
	"github.com/athlosone/athlos-server/pkg/crypto"
	"github.com/athlosone/athlos-server/pkg/metrics"
	"github.com/athlosone/athlos-server/pkg/response"
)

const (
	ssoStateKeyPrefix = "sso:google:state:"
	ssoStateTTL       = 10 * time.Minute
)

// SSOHandler drives the Google sign-in flow. State and nonce live in the
// shared cache store so the callback can be served by any instance.
type SSOHandler struct {
	google   *providers.GoogleProvider
	sessions *iauth.SessionService
	store    cache.Store
	auth     *AuthHandler
}

// NewSSOHandler wires the handler with its collaborating services.
func NewSSOHandler(google *providers.GoogleProvider, sessions *iauth.SessionService, store cache.Store, auth *AuthHandler) *SSOHandler {
	return &SSOHandler{
		google:   google,
		sessions: sessions,
		store:    store,
		auth:     auth,
	}
}

type ssoState struct {
	Nonce string `json:"nonce"`
}

// GET /api/auth/google/login
func (h *SSOHandler) GoogleBegin(c *gin.Context) {
	if h.google == nil {
		response.Error(c, appErrors.New("SSO_DISABLED", "Google sign-in is not configured", http.StatusNotImplemented))
		return
	}

	state, err := crypto.GenerateToken(24)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	nonce, err := crypto.GenerateToken(24)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	payload, err := json.Marshal(ssoState{Nonce: nonce})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	if err := h.store.Set(c.Request.Context(), ssoStateKeyPrefix+state, payload, ssoStateTTL); err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.google.AuthCodeURL(state, nonce))
}

// GET /api/auth/google/callback
func (h *SSOHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		response.Error(c, appErrors.New("SSO_DISABLED", "Google sign-in is not configured", http.StatusNotImplemented))
		return
	}

	if errStr := c.Query("error"); errStr != "" {
		response.Error(c, appErrors.NewBadRequest("authorization error: "+errStr))
		return
	}

	state := c.Query("state")
	if state == "" {
		response.Error(c, appErrors.NewBadRequest("state is required"))
		return
	}

	key := ssoStateKeyPrefix + state
	data, found, err := h.store.Get(c.Request.Context(), key)
	if err != nil || !found {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	// One-shot state; a replayed callback must not pass.
	_ = h.store.Delete(c.Request.Context(), key)

	var stored ssoState
	if err := json.Unmarshal(data, &stored); err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	identity, err := h.google.Exchange(c.Request.Context(), c.Query("code"), stored.Nonce)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrUnauthorized.WithInternal(err))
		return
	}

	account, err := h.google.FindOrCreateAccount(c.Request.Context(), identity)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.auth.issueSession(c, account)
}
