package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/athlosone/athlos-server/internal/auth"
)

const (
	// DashboardPath is where fully onboarded accounts land.
	DashboardPath = "/dashboard"
	// OnboardingEntryPath is the first onboarding step and the target for
	// authenticated accounts that have not finished onboarding.
	OnboardingEntryPath = "/auth/onboarding/basic-info"
)

// onboardingPaths are the entry and exit steps of the onboarding funnel. An
// account that has completed onboarding is bounced from them back to the
// dashboard.
var onboardingPaths = []string{
	"/auth/onboarding/basic-info",
	"/auth/onboarding/invite-team",
}

// GuardDecision is the outcome of evaluating a route against session state.
type GuardDecision struct {
	Allowed    bool   `json:"allowed"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// EvaluateRoute decides whether a client may stay on the requested path. It
// is a pure function of token presence, onboarding state, and path, so both
// the middleware and the guard endpoint share it.
//
// Requests without a token pass through untouched; sign-in enforcement
// belongs to the auth flow, not the guard. Authenticated but not-yet-onboarded
// accounts are funneled from the dashboard to the onboarding entry, and
// onboarded accounts are kept out of the onboarding funnel.
func EvaluateRoute(hasToken, onboardingComplete bool, path string) GuardDecision {
	if !hasToken {
		return GuardDecision{Allowed: true}
	}

	if strings.HasPrefix(path, DashboardPath) && !onboardingComplete {
		return GuardDecision{Allowed: false, RedirectTo: OnboardingEntryPath}
	}

	if isOnboardingPath(path) && onboardingComplete {
		return GuardDecision{Allowed: false, RedirectTo: DashboardPath}
	}

	return GuardDecision{Allowed: true}
}

func isOnboardingPath(path string) bool {
	for _, p := range onboardingPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// OnboardingGuard redirects page requests according to the guard decision.
// Invalid or absent tokens are treated as signed out rather than rejected,
// because the guarded paths are pages, not API endpoints.
func OnboardingGuard(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		var hasToken, onboardingComplete bool
		if token := BearerToken(c); token != "" {
			if claims, err := jwt.ValidateAccessToken(token); err == nil {
				hasToken = true
				onboardingComplete = claims.OnboardingComplete
			}
		}

		decision := EvaluateRoute(hasToken, onboardingComplete, path)
		if !decision.Allowed {
			c.Redirect(http.StatusTemporaryRedirect, decision.RedirectTo)
			c.Abort()
			return
		}

		c.Next()
	}
}
