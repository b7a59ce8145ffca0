package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/athlosone/athlos-server/internal/models"
)

// GoogleIssuer is Google's OIDC issuer URL.
const GoogleIssuer = "https://accounts.google.com"

// GoogleConfig holds OAuth client credentials for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// GoogleOptions configures the provider construction.
type GoogleOptions struct {
	HTTPClient *http.Client
	Clock      func() time.Time
	Timeout    time.Duration
}

// Identity is the verified profile extracted from a Google ID token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleProvider implements the authorization-code flow against Google via
// OIDC discovery.
type GoogleProvider struct {
	db          *gorm.DB
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	clock       func() time.Time
	timeout     time.Duration
}

// NewGoogleProvider performs OIDC discovery against Google and builds the provider.
func NewGoogleProvider(db *gorm.DB, cfg GoogleConfig, opts GoogleOptions) (*GoogleProvider, error) {
	if db == nil {
		return nil, errors.New("google provider: db is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google provider: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google provider: client secret is required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("google provider: redirect url is required")
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	clock := time.Now
	if opts.Clock != nil {
		clock = opts.Clock
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, opts.HTTPClient)
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	issuer, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google provider: discovery failed: %w", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     issuer.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}

	return &GoogleProvider{
		db:          db,
		oauthConfig: oauthConfig,
		verifier:    issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		clock:       clock,
		timeout:     opts.Timeout,
	}, nil
}

// AuthCodeURL builds the Google consent page URL for the supplied state and nonce.
func (p *GoogleProvider) AuthCodeURL(state, nonce string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", nonce))
}

// Exchange swaps the authorization code for tokens and verifies the ID token.
func (p *GoogleProvider) Exchange(ctx context.Context, code, expectedNonce string) (*Identity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("google provider: authorization code missing")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google provider: exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google provider: id token missing")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google provider: verify id token: %w", err)
	}
	if expectedNonce != "" && idToken.Nonce != expectedNonce {
		return nil, errors.New("google provider: nonce mismatch")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google provider: decode claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("google provider: email claim missing")
	}

	return &Identity{
		Subject:       idToken.Subject,
		Email:         strings.ToLower(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// FindOrCreateAccount resolves the identity to a local account, creating one
// on first sign-in. Google accounts are verified from the start since the
// email ownership is vouched for by the identity provider.
func (p *GoogleProvider) FindOrCreateAccount(ctx context.Context, identity *Identity) (*models.Account, error) {
	if identity == nil {
		return nil, errors.New("google provider: identity is required")
	}

	var account models.Account
	err := p.db.WithContext(ctx).Where("email = ?", identity.Email).Take(&account).Error
	if err == nil {
		return p.refreshWindow(ctx, &account, identity)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("google provider: query account: %w", err)
	}

	firstName, lastName := splitName(identity.Name)
	windowEnd := p.clock().Add(24 * time.Hour)

	account = models.Account{
		Email:         identity.Email,
		Verified:      true,
		VerifiedUntil: &windowEnd,
		FirstName:     firstName,
		LastName:      lastName,
	}
	if identity.Picture != "" {
		picture := identity.Picture
		account.ProfileImage = &picture
	}

	if err := p.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, fmt.Errorf("google provider: create account: %w", err)
	}

	return &account, nil
}

// refreshWindow reopens the verification window for a returning Google
// account. The identity provider has just re-attested the email, so a lapsed
// window does not force the passcode flow here.
func (p *GoogleProvider) refreshWindow(ctx context.Context, account *models.Account, identity *Identity) (*models.Account, error) {
	windowEnd := p.clock().Add(24 * time.Hour)
	updates := map[string]any{
		"verified":       true,
		"verified_until": windowEnd,
	}
	if identity.Picture != "" && account.ProfileImage == nil {
		updates["profile_image"] = identity.Picture
	}

	if err := p.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("google provider: update account: %w", err)
	}

	account.Verified = true
	account.VerifiedUntil = &windowEnd
	return account, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
