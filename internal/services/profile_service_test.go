package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/athlosone/athlos-server/internal/database"
	"github.com/athlosone/athlos-server/internal/models"
	apperrors "github.com/athlosone/athlos-server/pkg/errors"
)

func setupProfileTest(t *testing.T) (*gorm.DB, *ProfileService) {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc, err := NewProfileService(db)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Account{Email: "coach@example.com"}).Error)

	return db, svc
}

func strPtr(s string) *string { return &s }

func TestGetProfile(t *testing.T) {
	_, svc := setupProfileTest(t)

	account, err := svc.Get(context.Background(), "Coach@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "coach@example.com", account.Email)

	_, err = svc.Get(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateOnboardingPartialStepsAccumulate(t *testing.T) {
	_, svc := setupProfileTest(t)

	account, err := svc.UpdateOnboarding(context.Background(), "coach@example.com", OnboardingUpdateInput{
		FirstName: strPtr("Ada"),
		LastName:  strPtr("Lovelace"),
		Phone:     strPtr("555-0100"),
	})
	require.NoError(t, err)
	require.Equal(t, "Ada", account.FirstName)
	require.False(t, account.OnboardingComplete)

	activities := []string{"basketball", "soccer"}
	account, err = svc.UpdateOnboarding(context.Background(), "coach@example.com", OnboardingUpdateInput{
		Region:      strPtr("midwest"),
		Affiliation: strPtr("club"),
		NumAthletes: strPtr("25-50"),
		Activities:  &activities,
	})
	require.NoError(t, err)

	// Earlier steps are untouched by later partial updates.
	require.Equal(t, "Ada", account.FirstName)
	require.Equal(t, "Lovelace", account.LastName)
	require.Equal(t, "midwest", account.Region)
	require.ElementsMatch(t, activities, []string(account.Activities))
	require.False(t, account.OnboardingComplete)
}

func TestUpdateOnboardingInvitesCompletes(t *testing.T) {
	_, svc := setupProfileTest(t)

	// An empty invite list still counts as submitting the final step.
	invites := []string{}
	account, err := svc.UpdateOnboarding(context.Background(), "coach@example.com", OnboardingUpdateInput{
		Invites: &invites,
	})
	require.NoError(t, err)
	require.True(t, account.OnboardingComplete)
}

func TestUpdateOnboardingSkipCompletes(t *testing.T) {
	_, svc := setupProfileTest(t)

	account, err := svc.UpdateOnboarding(context.Background(), "coach@example.com", OnboardingUpdateInput{
		Skip: true,
	})
	require.NoError(t, err)
	require.True(t, account.OnboardingComplete)
}

func TestUpdateOnboardingEmptyInputIsNoop(t *testing.T) {
	_, svc := setupProfileTest(t)

	account, err := svc.UpdateOnboarding(context.Background(), "coach@example.com", OnboardingUpdateInput{})
	require.NoError(t, err)
	require.False(t, account.OnboardingComplete)
	require.Empty(t, account.FirstName)
}

func TestMarkTourSeen(t *testing.T) {
	db, svc := setupProfileTest(t)

	account, err := svc.MarkTourSeen(context.Background(), "coach@example.com")
	require.NoError(t, err)
	require.True(t, account.HasSeenTourModal)

	// Idempotent on repeat calls.
	account, err = svc.MarkTourSeen(context.Background(), "coach@example.com")
	require.NoError(t, err)
	require.True(t, account.HasSeenTourModal)

	var stored models.Account
	require.NoError(t, db.Take(&stored, "email = ?", "coach@example.com").Error)
	require.True(t, stored.HasSeenTourModal)
}
