package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.False(t, cfg.Server.CookieSecure)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/athlos.sqlite", cfg.Database.Path)

	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Address)

	require.Equal(t, "athlos-one", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 720*time.Hour, cfg.Auth.Session.RefreshTTL)
	require.Equal(t, 48, cfg.Auth.Session.RefreshLength)
	require.Equal(t, 10*time.Minute, cfg.Auth.Verification.PasscodeTTL)
	require.Equal(t, 6, cfg.Auth.Verification.PasscodeDigits)
	require.Equal(t, 24*time.Hour, cfg.Auth.Verification.WindowTTL)
	require.Equal(t, 5, cfg.Auth.RateLimit.MaxRequests)
	require.Equal(t, time.Minute, cfg.Auth.RateLimit.Window)
	require.False(t, cfg.Auth.Google.Enabled)

	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.True(t, cfg.Email.SMTP.UseTLS)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ATHLOS_SERVER_PORT", "9100")
	t.Setenv("ATHLOS_SERVER_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("ATHLOS_AUTH_VERIFICATION_PASSCODE_TTL", "5m")
	t.Setenv("ATHLOS_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("ATHLOS_DATABASE_DRIVER", "postgres")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	require.Equal(t, 5*time.Minute, cfg.Auth.Verification.PasscodeTTL)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, `
server:
  port: 9200
  cookie_secure: true
auth:
  verification:
    passcode_digits: 8
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Server.Port)
	require.True(t, cfg.Server.CookieSecure)
	require.Equal(t, 8, cfg.Auth.Verification.PasscodeDigits)

	// Untouched keys keep their defaults.
	require.Equal(t, 10*time.Minute, cfg.Auth.Verification.PasscodeTTL)
}
