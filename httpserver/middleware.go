package httpserver

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/AmmannChristian/go-casdoorauth/authz"
)

// ErrUnauthorized is wrapped by every error passed to an UnauthorizedHandler.
var ErrUnauthorized = errors.New("httpserver: unauthorized")

// MiddlewareConfig holds configuration for the authorization middleware.
type MiddlewareConfig struct {
	engine              *authz.Engine
	logger              Logger
	identityResolver    IdentityResolver
	unauthorizedHandler UnauthorizedHandler
}

// MiddlewareOption is a functional option for configuring middleware.
type MiddlewareOption func(*MiddlewareConfig)

// IdentityResolver determines whether a request is anonymous and which
// bearer token and path it carries.
type IdentityResolver func(r *http.Request) authz.Identity

// UnauthorizedHandler writes the response for a denied request.
type UnauthorizedHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithMiddlewareLogger sets a logger for the middleware.
func WithMiddlewareLogger(logger Logger) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.logger = logger
	}
}

// WithIdentityResolver replaces ResolveIdentity.
func WithIdentityResolver(resolver IdentityResolver) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.identityResolver = resolver
	}
}

// WithUnauthorizedHandler sets a custom handler for denied requests.
// By default, returns HTTP 401 with a plain text body.
func WithUnauthorizedHandler(handler UnauthorizedHandler) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.unauthorizedHandler = handler
	}
}

// Middleware returns an HTTP middleware that asks engine for a decision on
// every request before it reaches next.
//
// Permitted requests carrying a token have the authenticated user stored in
// the request context (see UserFromContext). Denied requests are answered by
// the UnauthorizedHandler. A nil engine denies everything.
//
// Usage:
//
//	engine := authz.NewEngine(parser)
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/orders", ordersHandler)
//	http.ListenAndServe(":8080", httpserver.Middleware(engine)(mux))
func Middleware(engine *authz.Engine, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	config := &MiddlewareConfig{
		engine:           engine,
		identityResolver: ResolveIdentity,
		unauthorizedHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := config.identityResolver(r)

			result := authz.Result{Reason: "no decision engine configured"}
			if config.engine != nil {
				result = config.engine.Evaluate(r.Context(), id)
			}

			if !result.Permitted() {
				if config.logger != nil {
					config.logger.Printf("httpserver: denied %s %s: %s", r.Method, id.Path, result.Reason)
				}
				config.unauthorizedHandler(w, r, &DeniedError{Path: id.Path, Reason: result.Reason})
				return
			}

			if result.User != nil {
				r = r.WithContext(WithUser(r.Context(), result.User))
				if config.logger != nil {
					config.logger.Printf("httpserver: authenticated %s %s (user: %s/%s)", r.Method, id.Path, result.User.Owner, result.User.Name)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DeniedError describes a request the engine rejected.
type DeniedError struct {
	Path   string
	Reason string
}

// Error returns the path and reason of the denial.
func (e *DeniedError) Error() string {
	return "httpserver: unauthorized request to " + e.Path + ": " + e.Reason
}

// Is enables errors.Is(err, ErrUnauthorized).
func (e *DeniedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ResolveIdentity is the default IdentityResolver. A request without an
// Authorization header is anonymous. Any Authorization header makes it
// authenticated; the token is the value after "Bearer " and is empty when
// the header uses another scheme.
func ResolveIdentity(r *http.Request) authz.Identity {
	id := authz.Identity{Path: NormalizePath(r)}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		id.Anonymous = true
		return id
	}

	if len(authHeader) > len("Bearer ") && strings.EqualFold(authHeader[:len("Bearer ")], "Bearer ") {
		id.Token = strings.TrimSpace(authHeader[len("Bearer "):])
	}

	return id
}

// CookieIdentityResolver returns an IdentityResolver that behaves like
// ResolveIdentity but, when the request has no Authorization header, takes
// the bearer token from the named cookie. Requests with neither are anonymous.
func CookieIdentityResolver(name string) IdentityResolver {
	return func(r *http.Request) authz.Identity {
		id := ResolveIdentity(r)
		if !id.Anonymous || name == "" {
			return id
		}

		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value == "" {
			return id
		}

		id.Anonymous = false
		id.Token = cookie.Value
		return id
	}
}

// NormalizePath returns the cleaned request path, keeping a trailing slash.
// A request without a URL yields "", which is never public.
func NormalizePath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}

	p := r.URL.Path
	if p == "" {
		return ""
	}
	if p[0] != '/' {
		p = "/" + p
	}

	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
