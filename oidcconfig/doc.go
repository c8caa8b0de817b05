// Package oidcconfig derives an OIDC client configuration from the Casdoor settings.
//
// When Casdoor is enabled and casdoor.endpoint, casdoor.client-id and
// casdoor.client-secret are all set, NewSource yields a property source with
// ordinal 250 holding
//
//	oidc.auth-server-url    = casdoor.endpoint
//	oidc.client-id          = casdoor.client-id
//	oidc.credentials.secret = casdoor.client-secret
//	oidc.application-type   = web-app
//
// Otherwise the source is empty. Because 250 sits above the built-in defaults
// and below configuration files and the environment, anything the operator
// sets explicitly in the oidc.* namespace overrides the derived values:
//
//	base := config.NewStack(config.DefaultsSource(), fileSource, config.OSEnvSource())
//	merged := base.With(oidcconfig.NewSource(base))
//	provider, err := oidcconfig.NewProviderFromLookup(ctx, merged)
//
// Provider performs discovery with github.com/coreos/go-oidc and exposes the
// web-app authorization code flow plus token verification.
package oidcconfig
