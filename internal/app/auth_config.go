package app

import (
	iauth "github.com/athlosone/athlos-server/internal/auth"
	"github.com/athlosone/athlos-server/internal/auth/providers"
	"github.com/athlosone/athlos-server/internal/services"
)

// JWTServiceConfig converts configuration settings into a JWT service config.
func (c AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: c.JWT.TTL,
	}
}

// SessionServiceConfig converts configuration settings into a session service config.
func (c AuthConfig) SessionServiceConfig() iauth.SessionConfig {
	return iauth.SessionConfig{
		RefreshTokenTTL: c.Session.RefreshTTL,
		RefreshLength:   c.Session.RefreshLength,
	}
}

// VerificationOptions converts configuration settings into verification service options.
func (c AuthConfig) VerificationOptions() []services.VerificationOption {
	return []services.VerificationOption{
		services.WithPasscodeTTL(c.Verification.PasscodeTTL),
		services.WithPasscodeDigits(c.Verification.PasscodeDigits),
		services.WithVerificationWindow(c.Verification.WindowTTL),
	}
}

// GoogleProviderConfig converts configuration settings into the Google provider config.
func (c AuthConfig) GoogleProviderConfig() providers.GoogleConfig {
	return providers.GoogleConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
	}
}
