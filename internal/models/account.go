package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account is a recruiter account keyed by email. Password and passcode
// columns are pointers because both are optional: social-login accounts
// carry no password hash, and the passcode pair only exists between
// issuance and consumption or expiry.
type Account struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	PasswordHash *string `gorm:"column:password_hash" json:"-"`

	// Verified is only meaningful while VerifiedUntil is in the future.
	// Consumers must check the window, never the flag alone.
	Verified      bool       `gorm:"default:false" json:"verified"`
	VerifiedUntil *time.Time `json:"verified_until,omitempty"`

	// OTPCode and OTPExpiresAt are set and cleared together.
	OTPCode      *string    `gorm:"column:otp_code" json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at" json:"-"`

	OnboardingComplete bool `gorm:"default:false" json:"onboarding_complete"`

	FirstName    string                      `json:"first_name"`
	LastName     string                      `json:"last_name"`
	Phone        string                      `json:"phone"`
	Region       string                      `json:"region"`
	Affiliation  string                      `json:"affiliation"`
	NumAthletes  string                      `json:"num_athletes"`
	ProfileImage *string                     `json:"profile_image"`
	Activities   datatypes.JSONSlice[string] `json:"activities"`

	HasSeenTourModal bool `gorm:"default:false" json:"has_seen_tour_modal"`

	Sessions []Session `gorm:"foreignKey:AccountID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// HasPassword reports whether password sign-in is possible at all.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// HasLivePasscode reports whether an unconsumed passcode exists and has not expired.
func (a *Account) HasLivePasscode(now time.Time) bool {
	return a.OTPCode != nil && *a.OTPCode != "" &&
		a.OTPExpiresAt != nil && a.OTPExpiresAt.After(now)
}

// InVerificationWindow reports whether a past passcode check still vouches
// for this account.
func (a *Account) InVerificationWindow(now time.Time) bool {
	return a.Verified && a.VerifiedUntil != nil && a.VerifiedUntil.After(now)
}
