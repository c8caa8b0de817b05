package oidcconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/internal/validator"
)

// Optional OIDC client settings that are never derived.
const (
	KeyRedirectURL = Prefix + "redirect-url"
	KeyScopes      = Prefix + "scopes"
)

// ProviderConfig holds the OIDC client settings read from the oidc.* namespace.
type ProviderConfig struct {
	IssuerURL       string
	ClientID        string
	ClientSecret    string
	ApplicationType string
	RedirectURL     string
	Scopes          []string // e.g., ["openid", "profile", "email"]
}

// ProviderConfigFromLookup reads the merged oidc.* properties of l.
func ProviderConfigFromLookup(l config.Lookup) (ProviderConfig, error) {
	get := func(key string) string {
		v, _ := l.Lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := ProviderConfig{
		IssuerURL:       get(KeyAuthServerURL),
		ClientID:        get(KeyClientID),
		ClientSecret:    get(KeyCredentialsSecret),
		ApplicationType: get(KeyApplicationType),
		RedirectURL:     get(KeyRedirectURL),
	}
	for _, scope := range strings.Split(get(KeyScopes), ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			cfg.Scopes = append(cfg.Scopes, scope)
		}
	}

	if cfg.IssuerURL == "" {
		return ProviderConfig{}, fmt.Errorf("oidcconfig: %s is not set", KeyAuthServerURL)
	}
	if cfg.ClientID == "" {
		return ProviderConfig{}, fmt.Errorf("oidcconfig: %s is not set", KeyClientID)
	}

	return cfg, nil
}

// Provider wraps OIDC discovery, token verification, and OAuth2 config.
// It satisfies the token parser contract, so it can back the decision
// engine instead of a certificate.
type Provider struct {
	verifier     *gooidc.IDTokenVerifier
	oauth2Config oauth2.Config
	webApp       bool
	logger       validator.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a logger for token verification events.
func WithProviderLogger(logger validator.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider performs OIDC discovery on cfg.IssuerURL. Use
// gooidc.ClientContext on ctx to supply a custom HTTP client.
func NewProvider(ctx context.Context, cfg ProviderConfig, opts ...ProviderOption) (*Provider, error) {
	oidcProv, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidcconfig: discovery: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	p := &Provider{
		verifier: oidcProv.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oidcProv.Endpoint(),
			Scopes:       scopes,
		},
		webApp: cfg.ApplicationType == ApplicationTypeWebApp,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// NewProviderFromLookup reads the oidc.* namespace of l and performs discovery.
func NewProviderFromLookup(ctx context.Context, l config.Lookup, opts ...ProviderOption) (*Provider, error) {
	cfg, err := ProviderConfigFromLookup(l)
	if err != nil {
		return nil, err
	}
	return NewProvider(ctx, cfg, opts...)
}

// OAuth2Config returns a copy of the OAuth2 client configuration.
func (p *Provider) OAuth2Config() oauth2.Config {
	return p.oauth2Config
}

// AuthCodeURL generates the IdP redirect URL with the given state and options.
// It is only meaningful for web-app clients.
func (p *Provider) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) (string, error) {
	if !p.webApp {
		return "", errors.New("oidcconfig: authorization code flow requires application-type web-app")
	}
	return p.oauth2Config.AuthCodeURL(state, opts...), nil
}

// Exchange exchanges an authorization code for tokens. It returns the user
// carried by the verified ID token together with the token response, whose
// AccessToken is what later requests present as their bearer token.
func (p *Provider) Exchange(ctx context.Context, code string) (*validator.User, *oauth2.Token, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("oidcconfig: token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, nil, errors.New("oidcconfig: no id_token in response")
	}

	user, err := p.ParseJWTToken(ctx, rawIDToken)
	if err != nil {
		return nil, nil, err
	}

	return user, token, nil
}

// ParseJWTToken verifies a token issued for this client and returns its user.
func (p *Provider) ParseJWTToken(ctx context.Context, rawToken string) (*validator.User, error) {
	idToken, err := p.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, validator.NewAuthError("oidc verification failed", err)
	}

	var user validator.User
	if err := idToken.Claims(&user); err != nil {
		return nil, validator.NewAuthError("failed to decode user claims", err)
	}

	if p.logger != nil {
		p.logger.Printf("oidcconfig: verified token for user %s/%s", user.Owner, user.Name)
	}

	return &user, nil
}
