package oidcconfig

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/internal/testutil"
	"github.com/AmmannChristian/go-casdoorauth/internal/validator"
)

// newDiscoveryServer serves a minimal Casdoor OIDC discovery document plus
// its JWKS and returns the issuer URL.
func newDiscoveryServer(t *testing.T, kp *testutil.KeyPair) string {
	t.Helper()

	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                issuer,
			"authorization_endpoint":                issuer + "/login/oauth/authorize",
			"token_endpoint":                        issuer + "/api/login/oauth/access_token",
			"jwks_uri":                              issuer + "/.well-known/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/.well-known/jwks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"kid": testutil.TestKeyID,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(kp.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(kp.PublicKey.E)).Bytes()),
			}},
		})
	})

	server := testutil.NewLocalHTTPServer(t, mux)
	issuer = server.URL
	return issuer
}

func TestProviderConfigFromLookup(t *testing.T) {
	src := config.NewMapSource("file", config.OrdinalFile, map[string]string{
		KeyAuthServerURL:     "https://door.example.com",
		KeyClientID:          "client",
		KeyCredentialsSecret: "secret",
		KeyApplicationType:   ApplicationTypeWebApp,
		KeyRedirectURL:       "https://app.example.com/callback",
		KeyScopes:            "openid, profile,,email",
	})

	cfg, err := ProviderConfigFromLookup(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IssuerURL != "https://door.example.com" || cfg.ClientID != "client" || cfg.ClientSecret != "secret" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if strings.Join(cfg.Scopes, " ") != "openid profile email" {
		t.Errorf("unexpected scopes %v", cfg.Scopes)
	}
}

func TestProviderConfigFromLookup_Missing(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantKey string
	}{
		{name: "no issuer", values: map[string]string{KeyClientID: "client"}, wantKey: KeyAuthServerURL},
		{name: "no client", values: map[string]string{KeyAuthServerURL: "https://door"}, wantKey: KeyClientID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProviderConfigFromLookup(config.NewMapSource("m", 1, tt.values))
			if err == nil || !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("expected error naming %s, got %v", tt.wantKey, err)
			}
		})
	}
}

func TestNewProviderFromLookup_DerivedConfig(t *testing.T) {
	kp := testutil.GenerateKeyPair(t)
	issuer := newDiscoveryServer(t, kp)

	base := config.NewStack(config.DefaultsSource(), config.NewMapSource("file", config.OrdinalFile, map[string]string{
		config.KeyEndpoint:     issuer,
		config.KeyClientID:     "client",
		config.KeyClientSecret: "secret",
	}))
	merged := base.With(NewSource(base))

	logger := &recordingLogger{}
	provider, err := NewProviderFromLookup(context.Background(), merged, WithProviderLogger(logger))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	oauthCfg := provider.OAuth2Config()
	if oauthCfg.Endpoint.TokenURL != issuer+"/api/login/oauth/access_token" {
		t.Errorf("unexpected token URL %q", oauthCfg.Endpoint.TokenURL)
	}
	if len(oauthCfg.Scopes) != 3 {
		t.Errorf("expected default scopes, got %v", oauthCfg.Scopes)
	}

	authURL, err := provider.AuthCodeURL("state-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(authURL, issuer+"/login/oauth/authorize?") || !strings.Contains(authURL, "state=state-1") {
		t.Errorf("unexpected auth URL %q", authURL)
	}

	token := testutil.NewUserClaims(issuer, "client", "built-in", "alice").WithRoles("admin").Sign(t, kp.PrivateKey)
	user, err := provider.ParseJWTToken(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Owner != "built-in" || user.Name != "alice" {
		t.Errorf("unexpected user %+v", user)
	}
	if roles := user.RoleNames(); len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("unexpected roles %v", roles)
	}
	if len(logger.messages) == 0 {
		t.Error("expected verification to be logged")
	}
}

func TestProvider_ParseJWTToken_Rejects(t *testing.T) {
	kp := testutil.GenerateKeyPair(t)
	other := testutil.GenerateKeyPair(t)
	issuer := newDiscoveryServer(t, kp)

	provider, err := NewProvider(context.Background(), ProviderConfig{IssuerURL: issuer, ClientID: "client"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong audience", token: testutil.NewUserClaims(issuer, "other", "built-in", "alice").Sign(t, kp.PrivateKey)},
		{name: "wrong issuer", token: testutil.NewUserClaims("https://evil", "client", "built-in", "alice").Sign(t, kp.PrivateKey)},
		{name: "expired", token: testutil.NewUserClaims(issuer, "client", "built-in", "alice").WithExpiry(time.Now().Add(-time.Hour)).Sign(t, kp.PrivateKey)},
		{name: "foreign key", token: testutil.NewUserClaims(issuer, "client", "built-in", "alice").Sign(t, other.PrivateKey)},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.ParseJWTToken(context.Background(), tt.token)
			if !errors.Is(err, validator.ErrAuth) {
				t.Errorf("expected auth error, got %v", err)
			}
		})
	}
}

func TestProvider_AuthCodeURLRequiresWebApp(t *testing.T) {
	kp := testutil.GenerateKeyPair(t)
	issuer := newDiscoveryServer(t, kp)

	provider, err := NewProvider(context.Background(), ProviderConfig{
		IssuerURL:       issuer,
		ClientID:        "client",
		ApplicationType: "service",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := provider.AuthCodeURL("state"); err == nil {
		t.Error("expected error for non web-app client")
	}
}

func TestNewProvider_DiscoveryFailure(t *testing.T) {
	server := testutil.NewLocalHTTPServer(t, http.NotFoundHandler())

	_, err := NewProvider(context.Background(), ProviderConfig{IssuerURL: server.URL, ClientID: "client"})
	if err == nil || !strings.Contains(err.Error(), "discovery") {
		t.Errorf("expected discovery error, got %v", err)
	}
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.messages = append(l.messages, format)
}
