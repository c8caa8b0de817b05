package config

// Resolver is the read-only handle to a validated configuration and its
// resolved certificate. It is built once at startup and shared freely.
type Resolver struct {
	cfg         Config
	certificate string
}

// NewResolver validates cfg and resolves its certificate, if one is set.
// Any failure is returned so the caller can abort startup.
func NewResolver(cfg Config, opts ...ResolveOption) (*Resolver, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	r := &Resolver{cfg: cfg}
	if cfg.Certificate != "" {
		certificate, err := ResolveCertificate(cfg.Certificate, opts...)
		if err != nil {
			return nil, err
		}
		r.certificate = certificate
	}

	return r, nil
}

// Config returns a copy of the validated configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Certificate returns the resolved certificate content, or "" when none was configured.
func (r *Resolver) Certificate() string {
	return r.certificate
}

// JWKSURL returns the key set location Casdoor publishes for the endpoint.
func (r *Resolver) JWKSURL() string {
	if r.cfg.Endpoint == "" {
		return ""
	}
	return r.cfg.Endpoint + "/.well-known/jwks"
}

// TokenURL returns the OAuth2 token endpoint of the Casdoor server.
func (r *Resolver) TokenURL() string {
	if r.cfg.Endpoint == "" {
		return ""
	}
	return r.cfg.Endpoint + "/api/login/oauth/access_token"
}

// IntrospectionURL returns the RFC 7662 endpoint of the Casdoor server.
func (r *Resolver) IntrospectionURL() string {
	if r.cfg.Endpoint == "" {
		return ""
	}
	return r.cfg.Endpoint + "/api/login/oauth/introspect"
}
