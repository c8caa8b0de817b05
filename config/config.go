package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds the Casdoor provider settings. An empty string means the
// setting was not supplied.
type Config struct {
	// Endpoint is the Casdoor server URL, e.g. "https://door.example.com".
	Endpoint string
	// OrganizationName is the Casdoor organization owning the application.
	OrganizationName string
	// ClientID of the Casdoor application.
	ClientID string
	// ClientSecret of the Casdoor application.
	ClientSecret string
	// Certificate is inline PEM content or a reference to a resource or file.
	Certificate string
	// ApplicationName of the Casdoor application.
	ApplicationName string
	// Enabled toggles the integration. Default: true.
	Enabled bool
}

// Default returns an empty, enabled configuration.
func Default() Config {
	return Config{Enabled: true}
}

var (
	// ErrDisabled is returned when the configuration has Enabled set to false.
	ErrDisabled = errors.New("config: casdoor configuration is disabled")
	// ErrBadEndpointScheme is returned when the endpoint is not an http(s) URL.
	ErrBadEndpointScheme = errors.New("config: endpoint must start with 'http://' or 'https://'")
	// ErrTrailingSlash is returned when the endpoint ends with '/'.
	ErrTrailingSlash = errors.New("config: endpoint must not end with '/'")
)

// ValidationError reports why a configuration was rejected.
type ValidationError struct {
	// Err is one of ErrDisabled, ErrBadEndpointScheme or ErrTrailingSlash.
	Err error
	// Endpoint is the offending endpoint, if the failure concerns it.
	Endpoint string
}

func (e *ValidationError) Error() string {
	if e.Endpoint == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Endpoint)
}

// Unwrap enables errors.Is against the sentinel errors.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks cfg and returns a *ValidationError if it cannot be used.
// A disabled configuration is always rejected, whatever its other fields.
func Validate(cfg Config) error {
	if !cfg.Enabled {
		return &ValidationError{Err: ErrDisabled}
	}

	if cfg.Endpoint != "" {
		if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
			return &ValidationError{Err: ErrBadEndpointScheme, Endpoint: cfg.Endpoint}
		}
		if strings.HasSuffix(cfg.Endpoint, "/") {
			return &ValidationError{Err: ErrTrailingSlash, Endpoint: cfg.Endpoint}
		}
	}

	return nil
}
