package oidcconfig

import (
	"github.com/AmmannChristian/go-casdoorauth/config"
)

// Ordinal of the derived source: above built-in defaults, below files and
// environment variables, so explicit oidc.* settings still win.
const Ordinal = 250

// SourceName identifies the derived source in a config.Stack.
const SourceName = "CasdoorOidcConfigSource"

// Derived property names.
const (
	Prefix = "oidc."

	KeyAuthServerURL      = Prefix + "auth-server-url"
	KeyClientID           = Prefix + "client-id"
	KeyCredentialsSecret  = Prefix + "credentials.secret"
	KeyApplicationType    = Prefix + "application-type"
	ApplicationTypeWebApp = "web-app"
)

// Derive computes the OIDC client properties implied by the raw casdoor.*
// settings in l. The result holds all four keys or is empty.
func Derive(l config.Lookup) map[string]string {
	endpoint, hasEndpoint := present(l, config.KeyEndpoint)
	clientID, hasClientID := present(l, config.KeyClientID)
	clientSecret, hasSecret := present(l, config.KeyClientSecret)

	if !enabled(l) || !hasEndpoint || !hasClientID || !hasSecret {
		return map[string]string{}
	}

	return map[string]string{
		KeyAuthServerURL:     endpoint,
		KeyClientID:          clientID,
		KeyCredentialsSecret: clientSecret,
		KeyApplicationType:   ApplicationTypeWebApp,
	}
}

// NewSource wraps Derive(l) in a config.Source with Ordinal.
func NewSource(l config.Lookup) *config.MapSource {
	return config.NewMapSource(SourceName, Ordinal, Derive(l))
}

// enabled only treats the literal "false" as off; a missing value is on.
func enabled(l config.Lookup) bool {
	v, ok := l.Lookup(config.KeyEnabled)
	return !ok || v != "false"
}

func present(l config.Lookup, key string) (string, bool) {
	v, ok := l.Lookup(key)
	return v, ok && v != ""
}
