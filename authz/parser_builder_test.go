package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/internal/testutil"
	"github.com/AmmannChristian/go-casdoorauth/internal/validator"
)

func newResolver(t *testing.T, cfg config.Config, opts ...config.ResolveOption) *config.Resolver {
	t.Helper()

	resolver, err := config.NewResolver(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	return resolver
}

func certResources(kp *testutil.KeyPair) config.ResolveOption {
	return config.WithResources(fstest.MapFS{
		"certs/casdoor.pem": &fstest.MapFile{Data: []byte(kp.CertificatePEM)},
	})
}

func TestParserBuilder_CertificateByDefault(t *testing.T) {
	kp := testutil.GenerateKeyPair(t)
	cfg := config.Default()
	cfg.ClientID = "client"
	cfg.Certificate = "/certs/casdoor.pem"

	parser, err := NewParserBuilder(newResolver(t, cfg, certResources(kp))).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := parser.(*validator.CertificateParser); !ok {
		t.Fatalf("expected certificate parser, got %T", parser)
	}

	token := testutil.NewUserClaims("https://door", "client", "built-in", "alice").Sign(t, kp.PrivateKey)
	engine := NewEngine(parser)
	result := engine.Evaluate(context.Background(), Identity{Token: token, Path: "/api"})
	if !result.Permitted() || result.User.Name != "alice" {
		t.Errorf("expected alice to be permitted, got %v (%s)", result.Decision, result.Reason)
	}

	wrongAudience := testutil.NewUserClaims("https://door", "other", "built-in", "alice").Sign(t, kp.PrivateKey)
	if engine.Decide(context.Background(), Identity{Token: wrongAudience, Path: "/api"}) != Deny {
		t.Error("expected token for another client to be denied")
	}
}

func TestParserBuilder_JWKSWithoutCertificate(t *testing.T) {
	kp := testutil.GenerateKeyPair(t)
	jwks := testutil.NewJWKSServer(t, kp)

	cfg := config.Default()
	cfg.Endpoint = jwks.URL
	cfg.ClientID = "client"

	logger := &mockLogger{}
	parser, err := NewParserBuilder(newResolver(t, cfg)).
		WithHTTPClient(jwks.Client()).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer CloseParser(parser)

	if _, ok := parser.(*validator.JWKSParser); !ok {
		t.Fatalf("expected JWKS parser, got %T", parser)
	}

	token := testutil.NewUserClaims(jwks.URL, "client", "built-in", "bob").Sign(t, kp.PrivateKey)
	user, err := parser.ParseJWTToken(context.Background(), token)
	if err != nil || user.Name != "bob" {
		t.Errorf("expected bob, got %+v, %v", user, err)
	}
	if len(logger.messages) == 0 {
		t.Error("expected builder to log the JWKS URL")
	}
}

func TestParserBuilder_ForceJWKS(t *testing.T) {
	kp := testutil.GenerateKeyPair(t)
	jwks := testutil.NewJWKSServer(t, kp)

	cfg := config.Default()
	cfg.Endpoint = jwks.URL
	cfg.Certificate = "certs/casdoor.pem"

	parser, err := NewParserBuilder(newResolver(t, cfg, certResources(kp))).WithJWKS().WithAudience("").Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer CloseParser(parser)

	if _, ok := parser.(*validator.JWKSParser); !ok {
		t.Fatalf("expected JWKS parser, got %T", parser)
	}
}

func TestParserBuilder_Introspection(t *testing.T) {
	var gotPath string
	client := &http.Client{Transport: testutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		return testutil.StaticJSONResponse(http.StatusOK, `{"active":true,"username":"built-in/carol","sub":"id-carol"}`)(r)
	})}

	cfg := config.Default()
	cfg.Endpoint = "https://door.example.com"
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"

	parser, err := NewParserBuilder(newResolver(t, cfg)).WithIntrospection().WithHTTPClient(client).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := parser.ParseJWTToken(context.Background(), "opaque")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Owner != "built-in" || user.Name != "carol" {
		t.Errorf("unexpected user %+v", user)
	}
	if gotPath != "/api/login/oauth/introspect" {
		t.Errorf("unexpected introspection path %q", gotPath)
	}
}

func TestParserBuilder_Errors(t *testing.T) {
	if _, err := NewParserBuilder(nil).Build(); err == nil {
		t.Error("expected error for nil resolver")
	}

	noEndpoint := newResolver(t, config.Default())
	if _, err := NewParserBuilder(noEndpoint).Build(); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("expected endpoint error, got %v", err)
	}

	cfg := config.Default()
	cfg.Endpoint = "https://door.example.com"
	cfg.ClientID = "client"
	_, err := NewParserBuilder(newResolver(t, cfg)).WithIntrospection().Build()
	if err == nil || !strings.Contains(err.Error(), "introspection parser") {
		t.Errorf("expected introspection error for missing secret, got %v", err)
	}

	server := testutil.NewLocalHTTPServer(t, http.NotFoundHandler())
	cfg = config.Default()
	cfg.Endpoint = server.URL
	_, err = NewParserBuilder(newResolver(t, cfg)).WithHTTPClient(server.Client()).Build()
	if err == nil || !strings.Contains(err.Error(), "JWKS parser") {
		t.Errorf("expected JWKS error, got %v", err)
	}
}

func TestCloseParser_NonCloser(t *testing.T) {
	CloseParser(&mockParser{})
	CloseParser(nil)
}

func TestAliases(t *testing.T) {
	err := error(&AuthError{Reason: "x"})
	if !errors.Is(err, ErrAuth) {
		t.Error("expected AuthError to match ErrAuth")
	}
}
