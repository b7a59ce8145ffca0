package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/athlosone/athlos-server/internal/database"
	"github.com/athlosone/athlos-server/internal/models"
)

func setupSessionTest(t *testing.T) (*gorm.DB, *SessionService, *models.Account, func() time.Time) {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	current := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	jwtSvc, err := NewJWTService(JWTConfig{Secret: "test-secret", Clock: now})
	require.NoError(t, err)

	svc, err := NewSessionService(db, jwtSvc, SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           now,
	})
	require.NoError(t, err)

	account := models.Account{Email: "coach@example.com"}
	require.NoError(t, db.Create(&account).Error)

	return db, svc, &account, now
}

func TestCreateSessionStampsAccountClaims(t *testing.T) {
	db, svc, account, _ := setupSessionTest(t)

	require.NoError(t, db.Model(account).Update("onboarding_complete", true).Error)

	pair, session, err := svc.CreateSession(context.Background(), account.ID, SessionMetadata{
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, account.ID, session.AccountID)

	claims, err := svc.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.Email, claims.Email)
	require.True(t, claims.OnboardingComplete)
	require.Equal(t, session.ID, claims.SessionID)
}

func TestRefreshSessionPicksUpAccountChanges(t *testing.T) {
	db, svc, account, _ := setupSessionTest(t)

	pair, _, err := svc.CreateSession(context.Background(), account.ID, SessionMetadata{})
	require.NoError(t, err)

	claims, err := svc.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.False(t, claims.OnboardingComplete)

	// Onboarding completes between token issuance and refresh.
	require.NoError(t, db.Model(account).Update("onboarding_complete", true).Error)

	refreshed, session, err := svc.RefreshSession(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, account.ID, session.AccountID)

	claims, err = svc.jwt.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	require.True(t, claims.OnboardingComplete)
}

func TestRefreshSessionRejectsRotatedToken(t *testing.T) {
	_, svc, account, _ := setupSessionTest(t)

	pair, _, err := svc.CreateSession(context.Background(), account.ID, SessionMetadata{})
	require.NoError(t, err)

	_, _, err = svc.RefreshSession(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	_, _, err = svc.RefreshSession(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeSessionBlocksRefresh(t *testing.T) {
	_, svc, account, _ := setupSessionTest(t)

	pair, session, err := svc.CreateSession(context.Background(), account.ID, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(context.Background(), session.ID))

	_, _, err = svc.RefreshSession(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRevokeAccountSessions(t *testing.T) {
	db, svc, account, _ := setupSessionTest(t)

	_, _, err := svc.CreateSession(context.Background(), account.ID, SessionMetadata{})
	require.NoError(t, err)
	_, _, err = svc.CreateSession(context.Background(), account.ID, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAccountSessions(context.Background(), account.ID))

	var active int64
	require.NoError(t, db.Model(&models.Session{}).
		Where("account_id = ? AND revoked_at IS NULL", account.ID).
		Count(&active).Error)
	require.Zero(t, active)
}

func TestCleanupExpiredRemovesStaleSessions(t *testing.T) {
	db, svc, account, _ := setupSessionTest(t)

	pair, _, err := svc.CreateSession(context.Background(), account.ID, SessionMetadata{})
	require.NoError(t, err)

	expired := models.Session{
		AccountID:    account.ID,
		RefreshToken: "expired-token",
		ExpiresAt:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		LastUsedAt:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&expired).Error)

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	// The live session still refreshes.
	_, _, err = svc.RefreshSession(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
}
