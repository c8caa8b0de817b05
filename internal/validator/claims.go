package validator

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// signingMethods lists the algorithms Casdoor can be configured to sign with.
var signingMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// userClaims mirrors the claim layout of a Casdoor access token: the user
// record is flattened into the top level next to the registered claims.
type userClaims struct {
	User
	TokenType string `json:"tokenType,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Scope     string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// parseUserToken verifies tokenString with keyFunc and returns the embedded user.
func parseUserToken(tokenString string, keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) (*User, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, authError("token is empty", nil)
	}

	opts = append([]jwt.ParserOption{jwt.WithValidMethods(signingMethods)}, opts...)

	claims := &userClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, authError("token has expired", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, authError("invalid token signature", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, authError("malformed token", err)
		default:
			return nil, authError("failed to parse token", err)
		}
	}
	if !token.Valid {
		return nil, authError("token is invalid", nil)
	}

	user := claims.User
	return &user, nil
}

// parsePublicKey extracts the verification key from Casdoor certificate
// material. Both X.509 certificates and bare PKIX public keys are accepted.
func parsePublicKey(material string) (any, error) {
	block, _ := pem.Decode([]byte(material))
	if block == nil {
		return nil, errors.New("validator: certificate is not PEM encoded")
	}

	var key any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("validator: failed to parse certificate: %w", err)
		}
		key = cert.PublicKey
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("validator: failed to parse public key: %w", err)
		}
		key = parsed
	default:
		return nil, fmt.Errorf("validator: unsupported PEM block %q", block.Type)
	}

	switch key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("validator: unsupported public key type %T", key)
	}
}
