package authz

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/internal/validator"
)

type parserMode int

const (
	parserModeAuto parserMode = iota
	parserModeJWKS
	parserModeIntrospection
)

// ParserBuilder provides a fluent interface for constructing the TokenParser
// that backs an Engine from a resolved Casdoor configuration.
type ParserBuilder struct {
	resolver        *config.Resolver
	mode            parserMode
	audience        string
	refreshInterval time.Duration
	httpClient      *http.Client
	logger          Logger
}

// NewParserBuilder creates a builder for resolver.
//
// The builder uses these defaults:
//   - tokens are verified against the resolved certificate when one is
//     configured, otherwise against {endpoint}/.well-known/jwks
//   - the expected audience is the configured client id
//   - the HTTP client uses TLS 1.2+ and a 10 second timeout
func NewParserBuilder(resolver *config.Resolver) *ParserBuilder {
	b := &ParserBuilder{
		resolver:        resolver,
		refreshInterval: time.Hour,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
	if resolver != nil {
		b.audience = resolver.Config().ClientID
	}
	return b
}

// WithJWKS forces JWKS verification even when a certificate is configured.
func (b *ParserBuilder) WithJWKS() *ParserBuilder {
	b.mode = parserModeJWKS
	return b
}

// WithIntrospection verifies tokens with the Casdoor introspection endpoint,
// authenticating with the configured client credentials.
func (b *ParserBuilder) WithIntrospection() *ParserBuilder {
	b.mode = parserModeIntrospection
	return b
}

// WithAudience overrides the expected aud claim. An empty audience disables
// the audience check.
func (b *ParserBuilder) WithAudience(audience string) *ParserBuilder {
	b.audience = audience
	return b
}

// WithRefreshInterval sets how often JWKS keys are refreshed. Default is 1 hour.
func (b *ParserBuilder) WithRefreshInterval(interval time.Duration) *ParserBuilder {
	b.refreshInterval = interval
	return b
}

// WithHTTPClient sets the HTTP client for JWKS and introspection requests.
func (b *ParserBuilder) WithHTTPClient(client *http.Client) *ParserBuilder {
	b.httpClient = client
	return b
}

// WithLogger sets a logger for parser events.
func (b *ParserBuilder) WithLogger(logger Logger) *ParserBuilder {
	b.logger = logger
	return b
}

// Build constructs the TokenParser. Parsers holding background resources
// should be released with CloseParser.
func (b *ParserBuilder) Build() (TokenParser, error) {
	if b.resolver == nil {
		return nil, errors.New("authz: resolver is required")
	}

	cfg := b.resolver.Config()
	mode := b.mode
	if mode == parserModeAuto {
		if b.resolver.Certificate() != "" {
			parser, err := validator.NewCertificateParser(b.resolver.Certificate(), b.audience, b.logger)
			if err != nil {
				return nil, fmt.Errorf("authz: failed to build certificate parser: %w", err)
			}
			return parser, nil
		}
		mode = parserModeJWKS
	}

	if cfg.Endpoint == "" {
		return nil, errors.New("authz: endpoint is required without a certificate")
	}

	switch mode {
	case parserModeIntrospection:
		parser, err := validator.NewIntrospectionParser(b.resolver.IntrospectionURL(), cfg.ClientID, cfg.ClientSecret, b.httpClient, b.logger)
		if err != nil {
			return nil, fmt.Errorf("authz: failed to build introspection parser: %w", err)
		}
		return parser, nil
	default:
		if b.logger != nil {
			b.logger.Printf("authz: using JWKS URL: %s", b.resolver.JWKSURL())
		}
		parser, err := validator.NewJWKSParser(b.resolver.JWKSURL(), b.audience, b.httpClient, b.refreshInterval, b.logger)
		if err != nil {
			return nil, fmt.Errorf("authz: failed to build JWKS parser: %w", err)
		}
		return parser, nil
	}
}

// CloseParser stops background work owned by parser, if any.
func CloseParser(parser TokenParser) {
	if closer, ok := parser.(interface{ Close() }); ok {
		closer.Close()
	}
}
