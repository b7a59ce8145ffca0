package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/models"
	"github.com/athlosone/athlos-server/pkg/logger"
)

const (
	defaultSessionSpec = "@hourly"
	defaultAccountSpec = "@hourly"
)

// Cleaner coordinates background maintenance: purging expired sessions,
// clearing lapsed passcodes, and dropping the verified flag once a window ends.
type Cleaner struct {
	db       *gorm.DB
	sessions *iauth.SessionService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool

	sessionSchedule string
	accountSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithAccountSchedule overrides the cron specification for account state cleanup.
func WithAccountSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.accountSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, sessions *iauth.SessionService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:              db,
		sessions:        sessions,
		now:             time.Now,
		sessionSchedule: defaultSessionSpec,
		accountSchedule: defaultAccountSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			ctx := context.Background()
			if _, err := c.sessions.CleanupExpired(ctx); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.accountSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupAccountState(ctx, c.db, c.now()); err != nil {
				c.log.Warn("account state cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := CleanupAccountState(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// AccountCleanupStats captures the number of rows touched per cleanup step.
type AccountCleanupStats struct {
	ExpiredPasscodes int64
	LapsedWindows    int64
}

// CleanupAccountState clears passcodes past their expiry and drops the
// verified flag on accounts whose window has ended, so readers of the flag
// alone cannot mistake a stale account for a vouched one.
func CleanupAccountState(ctx context.Context, db *gorm.DB, now time.Time) (AccountCleanupStats, error) {
	if db == nil {
		return AccountCleanupStats{}, errors.New("cleanup accounts: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := AccountCleanupStats{}

	result := db.WithContext(ctx).Model(&models.Account{}).
		Where("otp_expires_at IS NOT NULL AND otp_expires_at < ?", now).
		Updates(map[string]any{
			"otp_code":       nil,
			"otp_expires_at": nil,
		})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup accounts: expired passcodes: %w", result.Error)
	}
	stats.ExpiredPasscodes = result.RowsAffected

	result = db.WithContext(ctx).Model(&models.Account{}).
		Where("verified = ? AND verified_until IS NOT NULL AND verified_until < ?", true, now).
		Update("verified", false)
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup accounts: lapsed windows: %w", result.Error)
	}
	stats.LapsedWindows = result.RowsAffected

	return stats, nil
}
