package handlers

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/middleware"
)

// claimsFromContext retrieves the validated claims placed by the auth middleware.
func claimsFromContext(c *gin.Context) (*iauth.Claims, bool) {
	v, ok := c.Get(middleware.CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*iauth.Claims)
	return claims, ok && claims != nil
}

// emailFromContext returns the authenticated account's email.
func emailFromContext(c *gin.Context) (string, bool) {
	claims, ok := claimsFromContext(c)
	if !ok || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

// sessionIDFromContext returns the session id associated with the request.
func sessionIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxSessionIDKey)
	if !ok {
		return "", false
	}
	sid, _ := v.(string)
	return sid, sid != ""
}
