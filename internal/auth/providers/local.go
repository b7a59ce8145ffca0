package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/athlosone/athlos-server/internal/models"
	"github.com/athlosone/athlos-server/internal/services"
	"github.com/athlosone/athlos-server/pkg/crypto"
)

var (
	// ErrInvalidCredentials is returned when the supplied email/password pair is invalid.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrReverificationRequired is returned when the password checks out but
	// the verification window has lapsed. A fresh passcode has already been
	// dispatched by the time callers see this error.
	ErrReverificationRequired = errors.New("auth: reverification required")
)

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	Clock func() time.Time
}

// AuthenticateInput contains the credentials submitted at sign-in. Password
// is optional: social-login accounts inside their verification window may
// sign in without one.
type AuthenticateInput struct {
	Email    string
	Password string
}

// LocalProvider implements email/password authentication gated on the
// account's verification window.
type LocalProvider struct {
	db           *gorm.DB
	verification *services.VerificationService
	clock        func() time.Time
}

// NewLocalProvider builds a provider. The verification service is required
// because a lapsed window triggers reverification as a side effect of sign-in.
func NewLocalProvider(db *gorm.DB, verification *services.VerificationService, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}
	if verification == nil {
		return nil, errors.New("local provider: verification service is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &LocalProvider{
		db:           db,
		verification: verification,
		clock:        clock,
	}, nil
}

// Authenticate verifies the supplied credentials and returns the account when
// sign-in may proceed.
//
// Accounts without a password hash, or requests without a password, pass when
// the verification window is open; this is the path social-login and
// just-verified accounts take. Password holders must additionally match their
// hash, and a correct password against a lapsed window starts reverification
// instead of opening a session.
func (p *LocalProvider) Authenticate(ctx context.Context, input AuthenticateInput) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	var account models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query account: %w", err)
	}

	now := p.clock()

	if !account.HasPassword() || input.Password == "" {
		if account.InVerificationWindow(now) {
			return &account, nil
		}
		return nil, ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(*account.PasswordHash, input.Password) {
		return nil, ErrInvalidCredentials
	}

	if !account.InVerificationWindow(now) {
		if err := p.verification.BeginReverification(ctx, &account); err != nil {
			return nil, err
		}
		return nil, ErrReverificationRequired
	}

	return &account, nil
}
