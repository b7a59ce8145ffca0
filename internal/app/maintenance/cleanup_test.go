package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/database"
	"github.com/athlosone/athlos-server/internal/models"
)

func setupCleanupTest(t *testing.T) (*gorm.DB, *iauth.SessionService, time.Time) {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	current := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "cleanup-secret"})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           func() time.Time { return current },
	})
	require.NoError(t, err)

	return db, sessions, current
}

func TestCleanupAccountState(t *testing.T) {
	db, _, now := setupCleanupTest(t)

	staleCode := "123456"
	staleExpiry := now.Add(-time.Minute)
	lapsedWindow := now.Add(-time.Hour)
	liveCode := "654321"
	liveExpiry := now.Add(5 * time.Minute)
	openWindow := now.Add(12 * time.Hour)

	stale := models.Account{
		Email:         "stale@example.com",
		OTPCode:       &staleCode,
		OTPExpiresAt:  &staleExpiry,
		Verified:      true,
		VerifiedUntil: &lapsedWindow,
	}
	live := models.Account{
		Email:         "live@example.com",
		OTPCode:       &liveCode,
		OTPExpiresAt:  &liveExpiry,
		Verified:      true,
		VerifiedUntil: &openWindow,
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&live).Error)

	stats, err := CleanupAccountState(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ExpiredPasscodes)
	require.EqualValues(t, 1, stats.LapsedWindows)

	var stored models.Account
	require.NoError(t, db.Take(&stored, "id = ?", stale.ID).Error)
	require.Nil(t, stored.OTPCode)
	require.Nil(t, stored.OTPExpiresAt)
	require.False(t, stored.Verified)

	stored = models.Account{}
	require.NoError(t, db.Take(&stored, "id = ?", live.ID).Error)
	require.NotNil(t, stored.OTPCode)
	require.True(t, stored.Verified)
}

func TestCleanupAccountStateRequiresDB(t *testing.T) {
	_, err := CleanupAccountState(context.Background(), nil, time.Now())
	require.Error(t, err)
}

func TestRunOncePurgesSessionsAndAccounts(t *testing.T) {
	db, sessions, now := setupCleanupTest(t)

	account := models.Account{Email: "coach@example.com"}
	require.NoError(t, db.Create(&account).Error)

	expired := models.Session{
		AccountID:    account.ID,
		RefreshToken: "expired-token",
		ExpiresAt:    now.Add(-time.Hour),
		LastUsedAt:   now.Add(-time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)

	staleCode := "111111"
	staleExpiry := now.Add(-time.Minute)
	require.NoError(t, db.Model(&account).Updates(map[string]any{
		"otp_code":       staleCode,
		"otp_expires_at": staleExpiry,
	}).Error)

	cleaner := NewCleaner(db, sessions, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.Zero(t, sessionCount)

	var stored models.Account
	require.NoError(t, db.Take(&stored, "id = ?", account.ID).Error)
	require.Nil(t, stored.OTPCode)
}

func TestCleanerStartAndStopWithoutJobs(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}
