// Package config loads and validates the Casdoor provider configuration.
//
// Configuration is read once at startup from a Stack of property sources
// (built-in defaults, YAML files, environment variables) and turned into an
// immutable Config. NewResolver validates it and resolves the signing
// certificate, failing fast on anything unusable:
//
//	stack := config.NewStack(config.DefaultsSource(), fileSource, config.OSEnvSource())
//	cfg, err := config.FromLookup(stack)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resolver, err := config.NewResolver(cfg, config.WithResources(embeddedCerts))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Certificates
//
// The certificate setting accepts inline PEM content or a reference. References
// are searched in the registered resource file systems first, then on disk.
// See ResolveCertificate for the exact order.
//
// # Errors
//
// Validation failures are *ValidationError values and certificate failures are
// *ResolutionError values; both unwrap to the exported sentinels, so callers
// can use errors.Is(err, config.ErrDisabled) and friends.
package config
