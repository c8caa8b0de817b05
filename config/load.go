package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Property names read from the raw configuration context.
const (
	Prefix = "casdoor."

	KeyEndpoint         = Prefix + "endpoint"
	KeyOrganizationName = Prefix + "organization-name"
	KeyClientID         = Prefix + "client-id"
	KeyClientSecret     = Prefix + "client-secret"
	KeyCertificate      = Prefix + "certificate"
	KeyApplicationName  = Prefix + "application-name"
	KeyEnabled          = Prefix + "enabled"
)

// DefaultsSource holds the built-in defaults.
func DefaultsSource() *MapSource {
	return NewMapSource("DefaultsSource", OrdinalDefaults, map[string]string{
		KeyEnabled: "true",
	})
}

// FromLookup builds a Config from the casdoor.* properties of l. Blank
// values count as unset; the endpoint and certificate are kept verbatim so
// Validate sees what was configured. The result is not validated; pass it
// to NewResolver.
func FromLookup(l Lookup) (Config, error) {
	cfg := Default()

	get := func(key string) string {
		v, ok := l.Lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	cfg.Endpoint = verbatim(l, KeyEndpoint)
	cfg.OrganizationName = get(KeyOrganizationName)
	cfg.ClientID = get(KeyClientID)
	cfg.ClientSecret = get(KeyClientSecret)
	cfg.Certificate = verbatim(l, KeyCertificate)
	cfg.ApplicationName = get(KeyApplicationName)

	if raw := get(KeyEnabled); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid value %q for %s: %w", raw, KeyEnabled, err)
		}
		cfg.Enabled = enabled
	}

	return cfg, nil
}

// verbatim returns the raw value of key, or "" when it is unset or blank.
func verbatim(l Lookup, key string) string {
	v, ok := l.Lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}
