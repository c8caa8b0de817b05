package validator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const defaultRefreshInterval = time.Hour

// JWKSParser verifies Casdoor tokens against the provider's published JWKS.
// Keys are cached and refreshed in the background until Close is called.
type JWKSParser struct {
	jwks     *keyfunc.JWKS
	audience string
	logger   Logger
}

// NewJWKSParser fetches the JWKS at jwksURL and returns a parser backed by it.
//
// Parameters:
//   - jwksURL: URL of the key set (Casdoor serves it at {endpoint}/.well-known/jwks)
//   - audience: Expected aud claim; empty disables the audience check
//   - httpClient: HTTP client for fetching JWKS (optional, uses http.DefaultClient if nil)
//   - refreshInterval: Duration between background refreshes (0 uses default of 1 hour)
//   - logger: Optional logger for debugging (can be nil)
func NewJWKSParser(jwksURL, audience string, httpClient *http.Client, refreshInterval time.Duration, logger Logger) (*JWKSParser, error) {
	if jwksURL == "" {
		return nil, errors.New("validator: JWKS URL is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}

	options := keyfunc.Options{
		Client:            httpClient,
		RefreshInterval:   refreshInterval,
		RefreshUnknownKID: true,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshErrorHandler: func(err error) {
			if logger != nil {
				logger.Printf("validator: failed to refresh JWKS from %s: %v", jwksURL, err)
			}
		},
	}

	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("validator: failed to initialize JWKS: %w", err)
	}

	if logger != nil {
		logger.Printf("validator: loaded JWKS from %s", jwksURL)
	}

	return &JWKSParser{
		jwks:     jwks,
		audience: audience,
		logger:   logger,
	}, nil
}

// ParseJWTToken verifies the token against the cached key set and returns the user record.
func (p *JWKSParser) ParseJWTToken(_ context.Context, tokenString string) (*User, error) {
	var opts []jwt.ParserOption
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	user, err := parseUserToken(tokenString, p.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Printf("validator: parsed token for user %s/%s", user.Owner, user.Name)
	}

	return user, nil
}

// Close stops the background JWKS refresh.
func (p *JWKSParser) Close() {
	if p.jwks != nil {
		p.jwks.EndBackground()
	}
}
