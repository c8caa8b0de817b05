package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "empty", cfg: Config{}},
		{name: "valid endpoint", cfg: Config{Endpoint: "https://door.example.com"}},
		{name: "bad endpoint", cfg: Config{Endpoint: "ftp://door.example.com/"}},
		{name: "all fields", cfg: Config{
			Endpoint:         "https://door.example.com",
			OrganizationName: "built-in",
			ClientID:         "id",
			ClientSecret:     "secret",
			Certificate:      "cert",
			ApplicationName:  "app",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if !errors.Is(err, ErrDisabled) {
				t.Errorf("expected ErrDisabled, got %v", err)
			}
		})
	}
}

func TestValidate_Endpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  error
	}{
		{name: "https", endpoint: "https://example.com"},
		{name: "http", endpoint: "http://localhost:8000"},
		{name: "absent", endpoint: ""},
		{name: "https trailing slash", endpoint: "https://example.com/", wantErr: ErrTrailingSlash},
		{name: "no scheme", endpoint: "example.com", wantErr: ErrBadEndpointScheme},
		{name: "ftp", endpoint: "ftp://example.com", wantErr: ErrBadEndpointScheme},
		{name: "uppercase scheme", endpoint: "HTTPS://example.com", wantErr: ErrBadEndpointScheme},
		{name: "no scheme and trailing slash", endpoint: "example.com/", wantErr: ErrBadEndpointScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Endpoint = tt.endpoint

			err := Validate(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if validationErr.Endpoint != tt.endpoint {
				t.Errorf("expected endpoint %q in error, got %q", tt.endpoint, validationErr.Endpoint)
			}
			if !strings.Contains(err.Error(), tt.endpoint) {
				t.Errorf("expected message to mention endpoint, got %q", err.Error())
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Enabled {
		t.Error("expected default configuration to be enabled")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected default configuration to validate, got %v", err)
	}
}

func TestNewResolver(t *testing.T) {
	cfg := Default()
	cfg.Endpoint = "https://door.example.com"
	cfg.Certificate = "-----BEGIN CERTIFICATE-----\nabc\n-----END CERTIFICATE-----"

	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Config() != cfg {
		t.Errorf("expected stored config to equal input")
	}
	if r.Certificate() != cfg.Certificate {
		t.Errorf("expected inline certificate, got %q", r.Certificate())
	}
	if got := r.JWKSURL(); got != "https://door.example.com/.well-known/jwks" {
		t.Errorf("unexpected JWKS URL %q", got)
	}
	if got := r.TokenURL(); got != "https://door.example.com/api/login/oauth/access_token" {
		t.Errorf("unexpected token URL %q", got)
	}
	if got := r.IntrospectionURL(); got != "https://door.example.com/api/login/oauth/introspect" {
		t.Errorf("unexpected introspection URL %q", got)
	}
}

func TestNewResolver_NoEndpointURLs(t *testing.T) {
	r, err := NewResolver(Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.JWKSURL() != "" || r.TokenURL() != "" || r.IntrospectionURL() != "" || r.Certificate() != "" {
		t.Error("expected empty derived values without endpoint or certificate")
	}
}

func TestNewResolver_FailsFast(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, err := NewResolver(Config{Endpoint: "https://door.example.com"})
		if !errors.Is(err, ErrDisabled) {
			t.Errorf("expected ErrDisabled, got %v", err)
		}
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		cfg := Default()
		cfg.Endpoint = "https://door.example.com/"
		if _, err := NewResolver(cfg); !errors.Is(err, ErrTrailingSlash) {
			t.Errorf("expected ErrTrailingSlash, got %v", err)
		}
	})

	t.Run("missing certificate file", func(t *testing.T) {
		cfg := Default()
		cfg.Certificate = "/missing/file.crt"
		if _, err := NewResolver(cfg); !errors.Is(err, ErrCertificateNotFound) {
			t.Errorf("expected ErrCertificateNotFound, got %v", err)
		}
	})
}
