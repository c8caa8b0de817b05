package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/AmmannChristian/go-casdoorauth/authz"
	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/httpserver"
	"github.com/AmmannChristian/go-casdoorauth/oidcconfig"
)

// Parser modes accepted by --parser.
const (
	parserAuto          = "auto"
	parserJWKS          = "jwks"
	parserIntrospection = "introspection"
	parserOIDC          = "oidc"
)

// Headers set on proxied requests for the upstream.
const (
	headerUser  = "X-Casdoor-User"
	headerOwner = "X-Casdoor-Owner"
	headerRoles = "X-Casdoor-Roles"
)

// Cookies used by the login flow.
const (
	stateCookie   = "casdoor_auth_state"
	sessionCookie = "casdoor_auth_token"
)

// loginResponse is written by the callback after a successful login.
type loginResponse struct {
	User        *authz.User `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in,omitempty"`
}

type serveOptions struct {
	listen         string
	upstream       string
	parser         string
	managementPath string
	publicPaths    []string
	requiredRoles  []string
	requiredPerms  []string
	allowAdmin     bool
	login          bool
	tlsCertFile    string
	tlsKeyFile     string
	tlsCAFile      string
	shutdownGrace  time.Duration
}

// buildParser returns the token parser selected by mode and a function that
// releases its background resources.
func buildParser(ctx context.Context, mode string, stack *config.Stack, resolver *config.Resolver, logger authz.Logger) (authz.TokenParser, func(), error) {
	noop := func() {}

	switch mode {
	case "", parserAuto, parserJWKS, parserIntrospection:
		builder := authz.NewParserBuilder(resolver).WithLogger(logger)
		switch mode {
		case parserJWKS:
			builder = builder.WithJWKS()
		case parserIntrospection:
			builder = builder.WithIntrospection()
		}
		parser, err := builder.Build()
		if err != nil {
			return nil, noop, err
		}
		return parser, func() { authz.CloseParser(parser) }, nil
	case parserOIDC:
		provider, err := oidcconfig.NewProviderFromLookup(ctx, stack, oidcconfig.WithProviderLogger(logger))
		if err != nil {
			return nil, noop, err
		}
		return provider, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown parser %q (want auto, jwks, introspection or oidc)", mode)
	}
}

// newEngine builds the decision engine from the serve options.
func newEngine(parser authz.TokenParser, opts serveOptions, logger authz.Logger) *authz.Engine {
	engineOpts := []authz.Option{
		authz.WithLogger(logger),
		authz.WithManagementPath(opts.managementPath),
	}
	if len(opts.publicPaths) > 0 {
		engineOpts = append(engineOpts, authz.WithPublicPathPrefixes(opts.publicPaths...))
	}

	policy := authz.Policy{
		RequiredRoles:       opts.requiredRoles,
		RequiredPermissions: opts.requiredPerms,
		AllowAdmin:          opts.allowAdmin,
	}
	if len(policy.RequiredRoles) > 0 || len(policy.RequiredPermissions) > 0 {
		engineOpts = append(engineOpts, authz.WithPolicy(policy))
	}

	return authz.NewEngine(parser, engineOpts...)
}

// newProxy forwards to upstream and passes the authenticated user along.
// Client supplied identity headers are always dropped.
func newProxy(upstream *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(upstream)
			r.SetXForwarded()

			r.Out.Header.Del(headerUser)
			r.Out.Header.Del(headerOwner)
			r.Out.Header.Del(headerRoles)

			if user, ok := httpserver.UserFromContext(r.In.Context()); ok {
				r.Out.Header.Set(headerUser, user.Name)
				r.Out.Header.Set(headerOwner, user.Owner)
				if roles := user.RoleNames(); len(roles) > 0 {
					r.Out.Header.Set(headerRoles, strings.Join(roles, ","))
				}
			}
		},
	}
}

// newHandler wires health, the optional login flow and the proxy behind the
// authorization middleware. With a login provider, the session cookie set by
// the callback is accepted in place of an Authorization header.
func newHandler(engine *authz.Engine, upstream *url.URL, login *oidcconfig.Provider, managementPath string, logger httpserver.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	if login != nil && managementPath != "" {
		mux.HandleFunc(managementPath+"/login", loginHandler(login))
		mux.HandleFunc(managementPath+"/callback", callbackHandler(login))
	}

	mux.Handle("/", newProxy(upstream))

	middlewareOpts := []httpserver.MiddlewareOption{httpserver.WithMiddlewareLogger(logger)}
	if login != nil && managementPath != "" {
		middlewareOpts = append(middlewareOpts, httpserver.WithIdentityResolver(httpserver.CookieIdentityResolver(sessionCookie)))
	}

	return httpserver.Middleware(engine, middlewareOpts...)(mux)
}

func loginHandler(provider *oidcconfig.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := randomState()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		target, err := provider.AuthCodeURL(state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func callbackHandler(provider *oidcconfig.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(stateCookie)
		if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		user, token, err := provider.Exchange(r.Context(), code)
		if err != nil {
			var authErr *authz.AuthError
			if errors.As(err, &authErr) {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		bearer := token.AccessToken
		if bearer == "" {
			bearer, _ = token.Extra("id_token").(string)
		}

		resp := loginResponse{User: user, AccessToken: bearer, TokenType: "Bearer"}
		session := &http.Cookie{
			Name:     sessionCookie,
			Value:    bearer,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		}
		if !token.Expiry.IsZero() {
			resp.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
			session.Expires = token.Expiry
		}

		http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})
		http.SetCookie(w, session)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// parseUpstream accepts absolute http(s) URLs only.
func parseUpstream(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("upstream is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: must be an absolute http(s) URL", raw)
	}
	return u, nil
}
