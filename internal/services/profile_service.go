package services

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/athlosone/athlos-server/internal/models"
	apperrors "github.com/athlosone/athlos-server/pkg/errors"
)

// ProfileService reads and mutates recruiter profile data keyed by email.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs the service.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service requires a database handle")
	}
	return &ProfileService{db: db}, nil
}

// Get returns the account for the given email address.
func (s *ProfileService) Get(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load profile")
	}
	return &account, nil
}

// OnboardingUpdateInput carries the onboarding form. All fields are optional;
// only those present in the request are written, so a later step never wipes
// an earlier one.
type OnboardingUpdateInput struct {
	FirstName    *string   `json:"firstName"`
	LastName     *string   `json:"lastName"`
	Phone        *string   `json:"phone"`
	Region       *string   `json:"region"`
	Affiliation  *string   `json:"affiliation"`
	NumAthletes  *string   `json:"numAthletes"`
	Activities   *[]string `json:"activities"`
	ProfileImage *string   `json:"profileImage"`

	// Invites is the final onboarding step; submitting it, like Skip,
	// completes onboarding even when the list is empty.
	Invites *[]string `json:"invites"`
	Skip    bool      `json:"skip"`
}

// UpdateOnboarding applies a partial onboarding update and returns the
// refreshed account.
func (s *ProfileService) UpdateOnboarding(ctx context.Context, email string, input OnboardingUpdateInput) (*models.Account, error) {
	account, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Region != nil {
		updates["region"] = *input.Region
	}
	if input.Affiliation != nil {
		updates["affiliation"] = *input.Affiliation
	}
	if input.NumAthletes != nil {
		updates["num_athletes"] = *input.NumAthletes
	}
	if input.Activities != nil {
		updates["activities"] = datatypes.JSONSlice[string](*input.Activities)
	}
	if input.ProfileImage != nil {
		updates["profile_image"] = *input.ProfileImage
	}
	if input.Skip || input.Invites != nil {
		updates["onboarding_complete"] = true
	}

	if len(updates) == 0 {
		return account, nil
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to update onboarding data")
	}

	return s.Get(ctx, email)
}

// MarkTourSeen records that the dashboard tour modal has been dismissed.
func (s *ProfileService) MarkTourSeen(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	if !account.HasSeenTourModal {
		if err := s.db.WithContext(ctx).Model(account).
			Update("has_seen_tour_modal", true).Error; err != nil {
			return nil, apperrors.Wrap(err, "failed to update tour state")
		}
		account.HasSeenTourModal = true
	}

	return account, nil
}
