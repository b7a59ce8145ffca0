package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/athlosone/athlos-server/internal/models"
	"github.com/athlosone/athlos-server/pkg/crypto"
	apperrors "github.com/athlosone/athlos-server/pkg/errors"
	"github.com/athlosone/athlos-server/pkg/logger"
	"github.com/athlosone/athlos-server/pkg/mail"
	"github.com/athlosone/athlos-server/pkg/metrics"
)

const (
	defaultPasscodeTTL    = 10 * time.Minute
	defaultWindowTTL      = 24 * time.Hour
	defaultPasscodeDigits = 6
)

// VerificationService owns account creation and the passcode lifecycle:
// issuing codes on signup and resend, checking submitted codes, and opening
// the verification window that password sign-in later consults.
type VerificationService struct {
	db     *gorm.DB
	mailer mail.Mailer
	now    func() time.Time

	passcodeTTL    time.Duration
	windowTTL      time.Duration
	passcodeDigits int
}

// VerificationOption customises a VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationClock overrides the time source, used by tests.
func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPasscodeTTL overrides how long an issued passcode stays valid.
func WithPasscodeTTL(ttl time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if ttl > 0 {
			s.passcodeTTL = ttl
		}
	}
}

// WithVerificationWindow overrides how long a successful check vouches for the account.
func WithVerificationWindow(ttl time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if ttl > 0 {
			s.windowTTL = ttl
		}
	}
}

// WithPasscodeDigits overrides the passcode length.
func WithPasscodeDigits(digits int) VerificationOption {
	return func(s *VerificationService) {
		if digits > 0 {
			s.passcodeDigits = digits
		}
	}
}

// NewVerificationService builds the service. The mailer is required because
// every code issuance must reach the user or fail loudly.
func NewVerificationService(db *gorm.DB, mailer mail.Mailer, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service requires a database handle")
	}
	if mailer == nil {
		return nil, errors.New("verification service requires a mailer")
	}

	svc := &VerificationService{
		db:             db,
		mailer:         mailer,
		now:            time.Now,
		passcodeTTL:    defaultPasscodeTTL,
		windowTTL:      defaultWindowTTL,
		passcodeDigits: defaultPasscodeDigits,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SignupInput carries the fields accepted at registration.
type SignupInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Signup registers a new unverified account and dispatches the first
// passcode. The account is rolled back if the email cannot be sent, so a
// failed signup never leaves an orphan row that would block a retry.
func (s *VerificationService) Signup(ctx context.Context, input SignupInput) (*models.Account, error) {
	email := normalizeEmail(input.Email)

	var existing models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, apperrors.ErrAccountExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(err, "failed to check existing account")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	code, expiresAt, err := s.mintPasscode()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate passcode")
	}

	account := models.Account{
		Email:        email,
		PasswordHash: &hash,
		OTPCode:      &code,
		OTPExpiresAt: &expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to create account")
	}

	if err := s.sendPasscode(ctx, email, code); err != nil {
		// Undo the insert so the address can be registered again.
		if delErr := s.db.WithContext(ctx).Delete(&models.Account{}, "id = ?", account.ID).Error; delErr != nil {
			logger.Error("failed to roll back account after mail failure",
				zap.String("account_id", account.ID),
				zap.Error(delErr))
		}
		return nil, apperrors.ErrNotificationFailed.WithInternal(err)
	}

	metrics.PasscodesIssued.WithLabelValues("signup").Inc()
	logger.Info("account registered", zap.String("account_id", account.ID))
	return &account, nil
}

// ResendCode issues a fresh passcode for an existing account, replacing any
// earlier one. The verification window is left untouched.
func (s *VerificationService) ResendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, expiresAt, err := s.mintPasscode()
	if err != nil {
		return apperrors.Wrap(err, "failed to generate passcode")
	}

	updates := map[string]interface{}{
		"otp_code":       code,
		"otp_expires_at": expiresAt,
	}
	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return apperrors.Wrap(err, "failed to store passcode")
	}

	if err := s.sendPasscode(ctx, email, code); err != nil {
		return apperrors.ErrNotificationFailed.WithInternal(err)
	}

	metrics.PasscodesIssued.WithLabelValues("resend").Inc()
	return nil
}

// VerifyCode checks a submitted passcode. On success the account is marked
// verified, the window opens, and the stored code is consumed.
func (s *VerificationService) VerifyCode(ctx context.Context, email, code string) (*models.Account, error) {
	email = normalizeEmail(email)

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !account.HasLivePasscode(now) || !crypto.ConstantTimeEquals(*account.OTPCode, code) {
		metrics.PasscodeChecks.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrPasscodeInvalid
	}

	windowEnd := now.Add(s.windowTTL)
	updates := map[string]interface{}{
		"verified":       true,
		"verified_until": windowEnd,
		"otp_code":       nil,
		"otp_expires_at": nil,
	}
	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to mark account verified")
	}

	account.Verified = true
	account.VerifiedUntil = &windowEnd
	account.OTPCode = nil
	account.OTPExpiresAt = nil

	metrics.PasscodeChecks.WithLabelValues("success").Inc()
	logger.Info("account verified", zap.String("account_id", account.ID))
	return account, nil
}

// BeginReverification is invoked when a correct password meets a lapsed
// window. It drops the verified flag, issues a new passcode, and commits the
// next window up front so the follow-up code check does not have to.
func (s *VerificationService) BeginReverification(ctx context.Context, account *models.Account) error {
	if account == nil {
		return errors.New("nil account")
	}

	code, expiresAt, err := s.mintPasscode()
	if err != nil {
		return apperrors.Wrap(err, "failed to generate passcode")
	}

	windowEnd := s.now().Add(s.windowTTL)
	updates := map[string]interface{}{
		"verified":       false,
		"verified_until": windowEnd,
		"otp_code":       code,
		"otp_expires_at": expiresAt,
	}
	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return apperrors.Wrap(err, "failed to store passcode")
	}

	if err := s.sendPasscode(ctx, account.Email, code); err != nil {
		return apperrors.ErrNotificationFailed.WithInternal(err)
	}

	metrics.PasscodesIssued.WithLabelValues("reverification").Inc()
	return nil
}

func (s *VerificationService) findByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load account")
	}
	return &account, nil
}

func (s *VerificationService) mintPasscode() (string, time.Time, error) {
	code, err := crypto.GeneratePasscode(s.passcodeDigits)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, s.now().Add(s.passcodeTTL), nil
}

func (s *VerificationService) sendPasscode(ctx context.Context, email, code string) error {
	minutes := int(s.passcodeTTL / time.Minute)
	body := fmt.Sprintf(
		"Welcome to Athlos One!\r\n\r\n"+
			"Your verification code is: %s\r\n\r\n"+
			"This code expires in %d minutes. If you did not request it, you can safely ignore this email.\r\n",
		code, minutes)

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: "Your Athlos One verification code",
		Body:    body,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
