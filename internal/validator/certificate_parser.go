package validator

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CertificateParser verifies Casdoor tokens against the application's signing
// certificate, the same check the Casdoor SDKs perform.
type CertificateParser struct {
	key      any
	audience string
	logger   Logger
}

// NewCertificateParser creates a parser from resolved certificate content.
//
// Parameters:
//   - certificate: PEM certificate (or PKIX public key) configured for the Casdoor application
//   - audience: Expected aud claim; empty disables the audience check
//   - logger: Optional logger for debugging (can be nil)
func NewCertificateParser(certificate, audience string, logger Logger) (*CertificateParser, error) {
	if strings.TrimSpace(certificate) == "" {
		return nil, errors.New("validator: certificate is required")
	}

	key, err := parsePublicKey(certificate)
	if err != nil {
		return nil, err
	}

	return &CertificateParser{
		key:      key,
		audience: audience,
		logger:   logger,
	}, nil
}

// ParseJWTToken verifies the token signature and expiry and returns the user record.
func (p *CertificateParser) ParseJWTToken(_ context.Context, tokenString string) (*User, error) {
	var opts []jwt.ParserOption
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	user, err := parseUserToken(tokenString, func(*jwt.Token) (any, error) {
		return p.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Printf("validator: parsed token for user %s/%s", user.Owner, user.Name)
	}

	return user, nil
}
