package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/auth/providers"
	"github.com/athlosone/athlos-server/internal/middleware"
	"github.com/athlosone/athlos-server/internal/models"
	"github.com/athlosone/athlos-server/internal/services"
	appErrors "github.com/athlosone/athlos-server/pkg/errors"
	"github.com/athlosone/athlos-server/pkg/metrics"
	"github.com/athlosone/athlos-server/pkg/response"
)

// AuthHandler manages registration, verification and session flows.
type AuthHandler struct {
	db           *gorm.DB
	verification *services.VerificationService
	local        *providers.LocalProvider
	sessions     *iauth.SessionService
	cookieSecure bool
}

// NewAuthHandler wires the handler with its collaborating services.
func NewAuthHandler(db *gorm.DB, verification *services.VerificationService, local *providers.LocalProvider, sessions *iauth.SessionService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		db:           db,
		verification: verification,
		local:        local,
		sessions:     sessions,
		cookieSecure: cookieSecure,
	}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.verification.Signup(c.Request.Context(), services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":    account.ID,
		"email": account.Email,
	})
}

// POST /api/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.verification.ResendCode(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.verification.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"verified": true,
		"email":    account.Email,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.local.Authenticate(c.Request.Context(), providers.AuthenticateInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, providers.ErrReverificationRequired):
			metrics.AuthAttempts.WithLabelValues("reverification").Inc()
			response.Error(c, appErrors.ErrReverificationRequired)
		case errors.Is(err, providers.ErrInvalidCredentials):
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			response.Error(c, appErrors.ErrInvalidCredentials)
		default:
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			response.Error(c, err)
		}
		return
	}

	h.issueSession(c, account)
}

// issueSession creates a session for the account and writes the token pair,
// also setting the access token cookie consumed by the route guard.
func (h *AuthHandler) issueSession(c *gin.Context, account *models.Account) {
	pair, _, err := h.sessions.CreateSession(c.Request.Context(), account.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	h.setAccessCookie(c, pair.AccessToken)

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"user": gin.H{
			"id":                  account.ID,
			"email":               account.Email,
			"onboarding_complete": account.OnboardingComplete,
			"profile_image":       account.ProfileImage,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		response.Error(c, appErrors.NewBadRequest("refresh token is required"))
		return
	}

	pair, _, err := h.sessions.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	h.setAccessCookie(c, pair.AccessToken)

	response.Success(c, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sid, ok := sessionIDFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(c.Request.Context(), sid); err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	h.clearAccessCookie(c)

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var account models.Account
	if err := h.db.WithContext(c.Request.Context()).Take(&account, "id = ?", claims.UserID).Error; err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, account)
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, token, int(iauth.DefaultAccessTokenTTL.Seconds()), "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) clearAccessCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.cookieSecure, true)
}
