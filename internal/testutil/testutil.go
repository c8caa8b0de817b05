package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestKeyID is the kid header placed on signed test tokens and JWKS entries.
const TestKeyID = "casdoor-test-key"

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(status int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// KeyPair holds an RSA key pair plus a self-signed certificate wrapping the
// public key, which is the shape of the signing certificate Casdoor hands out.
type KeyPair struct {
	PrivateKey     *rsa.PrivateKey
	PublicKey      *rsa.PublicKey
	CertificatePEM string
}

// GenerateKeyPair generates a new RSA key pair and self-signed certificate.
func GenerateKeyPair(tb testing.TB) *KeyPair {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate RSA key pair: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		Subject:      pkix.Name{CommonName: "casdoor-test", Organization: []string{"built-in"}},
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	return &KeyPair{
		PrivateKey:     privateKey,
		PublicKey:      &privateKey.PublicKey,
		CertificatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
	}
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(tb testing.TB, path, content string) {
	tb.Helper()

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		tb.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteTestCertAndKey writes a self-signed server certificate and key to the provided paths.
func WriteTestCertAndKey(tb testing.TB, certPath, keyPath string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	WriteFile(tb, certPath, string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})))
	WriteFile(tb, keyPath, string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})))
}

// NewJWKSServer serves the public key of kp as a single-entry JWKS document.
func NewJWKSServer(tb testing.TB, kp *KeyPair) *httptest.Server {
	tb.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": TestKeyID,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(kp.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(kp.PublicKey.E)).Bytes()),
			},
		},
	}

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jwks); err != nil {
			tb.Errorf("failed to encode JWKS: %v", err)
		}
	}))
}

// UserClaims builds the claim set of a Casdoor access token.
type UserClaims struct {
	claims jwt.MapClaims
}

// NewUserClaims returns claims for a valid token issued to owner/name.
func NewUserClaims(issuer, audience, owner, name string) *UserClaims {
	return &UserClaims{
		claims: jwt.MapClaims{
			"iss":       issuer,
			"aud":       []string{audience},
			"sub":       "id-" + name,
			"owner":     owner,
			"name":      name,
			"id":        "id-" + name,
			"tokenType": "access-token",
			"exp":       time.Now().Add(time.Hour).Unix(),
			"iat":       time.Now().Add(-time.Minute).Unix(),
		},
	}
}

// WithExpiry sets a custom expiry time.
func (c *UserClaims) WithExpiry(exp time.Time) *UserClaims {
	c.claims["exp"] = exp.Unix()
	return c
}

// WithRoles sets the roles claim as Casdoor encodes it.
func (c *UserClaims) WithRoles(roles ...string) *UserClaims {
	c.claims["roles"] = namedRefs(c.claims["owner"], roles)
	return c
}

// WithPermissions sets the permissions claim as Casdoor encodes it.
func (c *UserClaims) WithPermissions(permissions ...string) *UserClaims {
	c.claims["permissions"] = namedRefs(c.claims["owner"], permissions)
	return c
}

// WithClaim sets an arbitrary claim.
func (c *UserClaims) WithClaim(key string, value any) *UserClaims {
	c.claims[key] = value
	return c
}

// WithoutClaim removes a claim.
func (c *UserClaims) WithoutClaim(key string) *UserClaims {
	delete(c.claims, key)
	return c
}

// Sign signs the claims with RS256 and returns the compact token.
func (c *UserClaims) Sign(tb testing.TB, privateKey *rsa.PrivateKey) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c.claims)
	token.Header["kid"] = TestKeyID

	signed, err := token.SignedString(privateKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return signed
}

func namedRefs(owner any, names []string) []map[string]any {
	refs := make([]map[string]any, 0, len(names))
	for _, name := range names {
		refs = append(refs, map[string]any{"owner": owner, "name": name})
	}
	return refs
}
