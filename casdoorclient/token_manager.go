package casdoorclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/AmmannChristian/go-casdoorauth/config"
)

// Logger is an interface for optional logging.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenManager fetches and caches access tokens from the Casdoor token
// endpoint using the client credentials grant. It is safe for concurrent use.
type TokenManager struct {
	config       *clientcredentials.Config
	token        *oauth2.Token
	mu           sync.RWMutex
	httpClient   *http.Client
	expiryLeeway time.Duration
	logger       Logger
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithLogger sets a logger for token refresh events.
func WithLogger(logger Logger) Option {
	return func(tm *TokenManager) {
		tm.logger = logger
	}
}

// WithScopes sets the scopes requested with every token.
func WithScopes(scopes ...string) Option {
	return func(tm *TokenManager) {
		tm.config.Scopes = append([]string(nil), scopes...)
	}
}

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(client *http.Client) Option {
	return func(tm *TokenManager) {
		tm.httpClient = client
	}
}

// WithExpiryLeeway sets how long before expiry a cached token is refreshed.
// Default is one minute.
func WithExpiryLeeway(leeway time.Duration) Option {
	return func(tm *TokenManager) {
		if leeway >= 0 {
			tm.expiryLeeway = leeway
		}
	}
}

// NewTokenManager creates a token manager for the application described by
// resolver. The endpoint, client ID and client secret must all be set.
func NewTokenManager(resolver *config.Resolver, opts ...Option) (*TokenManager, error) {
	if resolver == nil {
		return nil, errors.New("casdoorclient: resolver is required")
	}

	cfg := resolver.Config()
	tokenURL := resolver.TokenURL()
	if tokenURL == "" {
		return nil, errors.New("casdoorclient: endpoint is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("casdoorclient: client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("casdoorclient: client secret is required")
	}

	tm := &TokenManager{
		config: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		},
		expiryLeeway: time.Minute,
	}

	for _, opt := range opts {
		opt(tm)
	}

	return tm, nil
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or about to expire. The request honors ctx.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tm.mu.RLock()
	if tm.tokenValid() {
		token := tm.token.AccessToken
		tm.mu.RUnlock()
		return token, nil
	}
	tm.mu.RUnlock()

	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if tm.tokenValid() {
		return tm.token.AccessToken, nil
	}

	if tm.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, tm.httpClient)
	}

	token, err := tm.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("casdoorclient: failed to fetch token: %w", err)
	}

	tm.token = token

	if tm.logger != nil {
		tm.logger.Printf("casdoorclient: obtained new access token for %s (expires: %s)", tm.config.ClientID, token.Expiry.Format(time.RFC3339))
	}

	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.token = nil
	tm.mu.Unlock()
}

func (tm *TokenManager) tokenValid() bool {
	if tm.token == nil {
		return false
	}
	if !tm.token.Expiry.IsZero() && time.Until(tm.token.Expiry) <= tm.expiryLeeway {
		return false
	}
	return tm.token.Valid()
}
