package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/auth/providers"
	"github.com/athlosone/athlos-server/internal/cache"
	"github.com/athlosone/athlos-server/internal/database"
	"github.com/athlosone/athlos-server/internal/middleware"
	"github.com/athlosone/athlos-server/internal/services"
	"github.com/athlosone/athlos-server/pkg/mail"
)

var testPasscodePattern = regexp.MustCompile(`\b(\d{6})\b`)

type captureMailer struct {
	messages []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.messages)
	match := testPasscodePattern.FindStringSubmatch(m.messages[len(m.messages)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

type apiEnv struct {
	router *gin.Engine
	mailer *captureMailer
}

func setupAPITest(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "api-test-secret",
		Issuer:         "athlos-one",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	mailer := &captureMailer{}
	verification, err := services.NewVerificationService(db, mailer)
	require.NoError(t, err)

	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)

	local, err := providers.NewLocalProvider(db, verification, providers.LocalConfig{})
	require.NoError(t, err)

	cacheStore := cache.NewDatabaseStore(db)

	router, err := NewRouter(Deps{
		DB:               db,
		JWT:              jwtSvc,
		Sessions:         sessions,
		Verification:     verification,
		Profiles:         profiles,
		Local:            local,
		CacheStore:       cacheStore,
		RateStore:        middleware.NewMemoryRateStore(),
		SignupRateLimit:  5,
		SignupRateWindow: time.Minute,
	})
	require.NoError(t, err)

	return &apiEnv{router: router, mailer: mailer}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, rec.Body.String())
	return envelope.Data
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	env := setupAPITest(t)

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The password is correct, but the account has never been verified, so
	// sign-in kicks off reverification instead of opening a session.
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "auth.reverification_required")

	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{
		"email": "coach@example.com",
		"code":  env.mailer.lastCode(t),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	tokens, ok := data["tokens"].(map[string]interface{})
	require.True(t, ok)
	access, _ := tokens["access_token"].(string)
	refresh, _ := tokens["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	// The guard cookie rides along with the token pair.
	var cookieSet bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.AccessTokenCookie && c.Value != "" {
			cookieSet = true
		}
	}
	require.True(t, cookieSet)

	rec = env.do(t, http.MethodGet, "/api/auth/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := setupAPITest(t)

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "coach@example.com",
		"password": "password456",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "ACCOUNT_EXISTS")
}

func TestWrongPasscodeRejected(t *testing.T) {
	env := setupAPITest(t)

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	wrong := "000000"
	if env.mailer.lastCode(t) == wrong {
		wrong = "000001"
	}

	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{
		"email": "coach@example.com",
		"code":  wrong,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "auth.otp_invalid")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setupAPITest(t)

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/user/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOnboardingAndTourFlow(t *testing.T) {
	env := setupAPITest(t)

	access := signUpAndSignIn(t, env)

	rec := env.do(t, http.MethodPost, "/api/user/onboarding", access, gin.H{
		"firstName": "Ada",
		"lastName":  "Lovelace",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	require.Equal(t, false, data["onboarding_complete"])

	rec = env.do(t, http.MethodPost, "/api/user/onboarding", access, gin.H{
		"invites": []string{"assistant@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeData(t, rec)
	require.Equal(t, true, data["onboarding_complete"])
	require.Equal(t, "Ada", data["first_name"])

	rec = env.do(t, http.MethodPatch, "/api/user/tour", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeData(t, rec)
	require.Equal(t, true, data["has_seen_tour_modal"])
}

func TestGuardRouteEndpoint(t *testing.T) {
	env := setupAPITest(t)

	// Signed out: everything is reachable.
	rec := env.do(t, http.MethodGet, "/api/guard/route?path=/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.Equal(t, true, data["allowed"])

	access := signUpAndSignIn(t, env)

	rec = env.do(t, http.MethodGet, "/api/guard/route?path=/dashboard", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeData(t, rec)
	require.Equal(t, false, data["allowed"])
	require.Equal(t, middleware.OnboardingEntryPath, data["redirect_to"])

	rec = env.do(t, http.MethodGet, "/api/guard/route", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupRateLimited(t *testing.T) {
	env := setupAPITest(t)

	for i := 0; i < 6; i++ {
		rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
			"email":    fmt.Sprintf("coach%d@example.com", i),
			"password": "password123",
		})
		if i < 5 {
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	}
}

func signUpAndSignIn(t *testing.T, env *apiEnv) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{
		"email": "coach@example.com",
		"code":  env.mailer.lastCode(t),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "coach@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	tokens, ok := data["tokens"].(map[string]interface{})
	require.True(t, ok)
	access, _ := tokens["access_token"].(string)
	require.NotEmpty(t, access)
	return access
}
