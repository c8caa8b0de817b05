package casdoorclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/internal/testutil"
)

type stubLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *stubLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

type tokenServer struct {
	URL      string
	requests atomic.Int32
}

// newTokenServer serves the Casdoor token endpoint and hands out numbered tokens.
func newTokenServer(t *testing.T, expiresIn int) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login/oauth/access_token" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		clientID, clientSecret, ok := r.BasicAuth()
		if !ok {
			clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
		}
		if clientID != "app-client" || clientSecret != "app-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		n := ts.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
	ts.URL = server.URL

	return ts
}

func newResolver(t *testing.T, endpoint, clientID, clientSecret string) *config.Resolver {
	t.Helper()

	cfg := config.Default()
	cfg.Endpoint = endpoint
	cfg.ClientID = clientID
	cfg.ClientSecret = clientSecret

	resolver, err := config.NewResolver(cfg)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return resolver
}

func TestNewTokenManager(t *testing.T) {
	resolver := newResolver(t, "https://door.example.com", "app-client", "app-secret")

	tm, err := NewTokenManager(resolver, WithScopes("read", "write"))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	if tm.config.TokenURL != "https://door.example.com/api/login/oauth/access_token" {
		t.Errorf("TokenURL = %q", tm.config.TokenURL)
	}
	if tm.config.ClientID != "app-client" || tm.config.ClientSecret != "app-secret" {
		t.Errorf("credentials = %q/%q", tm.config.ClientID, tm.config.ClientSecret)
	}
	if strings.Join(tm.config.Scopes, " ") != "read write" {
		t.Errorf("Scopes = %v", tm.config.Scopes)
	}
	if tm.expiryLeeway != time.Minute {
		t.Errorf("expiryLeeway = %v, want 1m", tm.expiryLeeway)
	}
}

func TestNewTokenManager_Errors(t *testing.T) {
	tests := []struct {
		name     string
		resolver *config.Resolver
		wantErr  string
	}{
		{
			name:    "nil resolver",
			wantErr: "resolver is required",
		},
		{
			name:     "missing endpoint",
			resolver: newResolver(t, "", "app-client", "app-secret"),
			wantErr:  "endpoint is required",
		},
		{
			name:     "missing client ID",
			resolver: newResolver(t, "https://door.example.com", "", "app-secret"),
			wantErr:  "client ID is required",
		},
		{
			name:     "missing client secret",
			resolver: newResolver(t, "https://door.example.com", "app-client", ""),
			wantErr:  "client secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := NewTokenManager(tt.resolver)
			if err == nil {
				t.Fatal("expected error")
			}
			if tm != nil {
				t.Error("expected nil TokenManager on error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestTokenManager_Token_CachesUntilExpiry(t *testing.T) {
	server := newTokenServer(t, 3600)
	logger := &stubLogger{}

	tm, err := NewTokenManager(newResolver(t, server.URL, "app-client", "app-secret"), WithLogger(logger))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		token, err := tm.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "token-1" {
			t.Errorf("Token() = %q, want token-1", token)
		}
	}

	if got := server.requests.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}

	msgs := logger.getMessages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "obtained new access token for app-client") {
		t.Errorf("log messages = %v", msgs)
	}
}

func TestTokenManager_Token_RefreshesWithinLeeway(t *testing.T) {
	// expires_in of 30s falls inside the default one minute leeway.
	server := newTokenServer(t, 30)

	tm, err := NewTokenManager(newResolver(t, server.URL, "app-client", "app-secret"))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	first, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first == second {
		t.Errorf("expected a fresh token, got %q twice", first)
	}
	if got := server.requests.Load(); got != 2 {
		t.Errorf("token endpoint called %d times, want 2", got)
	}
}

func TestTokenManager_Token_Concurrent(t *testing.T) {
	server := newTokenServer(t, 3600)

	tm, err := NewTokenManager(newResolver(t, server.URL, "app-client", "app-secret"))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tm.Token(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Token() error = %v", err)
	}
	if got := server.requests.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}
}

func TestTokenManager_Invalidate(t *testing.T) {
	server := newTokenServer(t, 3600)

	tm, err := NewTokenManager(newResolver(t, server.URL, "app-client", "app-secret"))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	if _, err := tm.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	tm.Invalidate()

	token, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "token-2" {
		t.Errorf("Token() = %q, want token-2", token)
	}
}

func TestTokenManager_Token_RejectedCredentials(t *testing.T) {
	server := newTokenServer(t, 3600)

	tm, err := NewTokenManager(newResolver(t, server.URL, "app-client", "wrong-secret"))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	_, err = tm.Token(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}
	if !strings.Contains(err.Error(), "casdoorclient: failed to fetch token") {
		t.Errorf("error = %v", err)
	}

	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		t.Errorf("expected *oauth2.RetrieveError in chain, got %T", errors.Unwrap(err))
	}
}

func TestTokenManager_WithHTTPClient(t *testing.T) {
	var called atomic.Bool
	client := &http.Client{Transport: testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		called.Store(true)
		return testutil.StaticJSONResponse(http.StatusOK, `{"access_token":"stubbed","token_type":"Bearer","expires_in":3600}`)(req)
	})}

	tm, err := NewTokenManager(
		newResolver(t, "https://door.example.com", "app-client", "app-secret"),
		WithHTTPClient(client),
	)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	token, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "stubbed" {
		t.Errorf("Token() = %q, want stubbed", token)
	}
	if !called.Load() {
		t.Error("custom HTTP client was not used")
	}
}

func TestTokenManager_TokenValid(t *testing.T) {
	tm := &TokenManager{expiryLeeway: time.Minute}

	tests := []struct {
		name  string
		token *oauth2.Token
		want  bool
	}{
		{name: "nil token", token: nil, want: false},
		{name: "no expiry", token: &oauth2.Token{AccessToken: "a"}, want: true},
		{name: "far expiry", token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}, want: true},
		{name: "inside leeway", token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(30 * time.Second)}, want: false},
		{name: "expired", token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Minute)}, want: false},
		{name: "empty access token", token: &oauth2.Token{Expiry: time.Now().Add(time.Hour)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm.token = tt.token
			if got := tm.tokenValid(); got != tt.want {
				t.Errorf("tokenValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithExpiryLeeway_IgnoresNegative(t *testing.T) {
	tm, err := NewTokenManager(
		newResolver(t, "https://door.example.com", "app-client", "app-secret"),
		WithExpiryLeeway(-time.Second),
	)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	if tm.expiryLeeway != time.Minute {
		t.Errorf("expiryLeeway = %v, want 1m", tm.expiryLeeway)
	}
}

func BenchmarkTokenManager_Token_Cached(b *testing.B) {
	tm := &TokenManager{
		token:        &oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)},
		expiryLeeway: time.Minute,
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tm.Token(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
