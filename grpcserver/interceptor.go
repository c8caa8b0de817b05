package grpcserver

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/go-casdoorauth/authz"
)

// InterceptorConfig holds configuration for the authorization interceptors.
type InterceptorConfig struct {
	engine           *authz.Engine
	logger           Logger
	identityResolver IdentityResolver
	unauthorizedCode codes.Code
}

// InterceptorOption is a functional option for configuring interceptors.
type InterceptorOption func(*InterceptorConfig)

// IdentityResolver determines whether a call is anonymous and which bearer
// token it carries. fullMethod is used as the path.
type IdentityResolver func(ctx context.Context, fullMethod string) authz.Identity

// WithInterceptorLogger sets a logger for the interceptor.
func WithInterceptorLogger(logger Logger) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.logger = logger
	}
}

// WithIdentityResolver replaces ResolveIdentity.
func WithIdentityResolver(resolver IdentityResolver) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.identityResolver = resolver
	}
}

// WithUnauthorizedCode sets the status code returned for denied calls.
// Default is codes.Unauthenticated.
func WithUnauthorizedCode(code codes.Code) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.unauthorizedCode = code
	}
}

func newInterceptorConfig(engine *authz.Engine, opts []InterceptorOption) *InterceptorConfig {
	config := &InterceptorConfig{
		engine:           engine,
		identityResolver: ResolveIdentity,
		unauthorizedCode: codes.Unauthenticated,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// UnaryServerInterceptor returns a unary interceptor that asks engine for a
// decision before invoking the handler. The full method name is matched
// against the engine's public paths, so health methods are opened with
// authz.WithPublicPaths("/grpc.health.v1.Health/Check").
//
// Usage:
//
//	engine := authz.NewEngine(parser)
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcserver.UnaryServerInterceptor(engine)),
//	)
func UnaryServerInterceptor(engine *authz.Engine, opts ...InterceptorOption) grpc.UnaryServerInterceptor {
	config := newInterceptorConfig(engine, opts)

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, err := config.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(engine *authz.Engine, opts ...InterceptorOption) grpc.StreamServerInterceptor {
	config := newInterceptorConfig(engine, opts)

	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := config.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func (c *InterceptorConfig) authorize(ctx context.Context, fullMethod string) (context.Context, error) {
	id := c.identityResolver(ctx, fullMethod)

	result := authz.Result{Reason: "no decision engine configured"}
	if c.engine != nil {
		result = c.engine.Evaluate(ctx, id)
	}

	if !result.Permitted() {
		if c.logger != nil {
			c.logger.Printf("grpcserver: denied %s: %s", fullMethod, result.Reason)
		}
		return ctx, status.Error(c.unauthorizedCode, "grpcserver: unauthorized")
	}

	if result.User != nil {
		ctx = WithUser(ctx, result.User)
		if c.logger != nil {
			c.logger.Printf("grpcserver: authenticated %s (user: %s/%s)", fullMethod, result.User.Owner, result.User.Name)
		}
	}

	return ctx, nil
}

// ResolveIdentity is the default IdentityResolver. A call without an
// authorization metadata entry is anonymous; otherwise the token is the
// value after "Bearer ", or empty for other schemes.
func ResolveIdentity(ctx context.Context, fullMethod string) authz.Identity {
	id := authz.Identity{Path: fullMethod}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		id.Anonymous = true
		return id
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 || authHeaders[0] == "" {
		id.Anonymous = true
		return id
	}

	authHeader := authHeaders[0]
	if len(authHeader) > len("Bearer ") && strings.EqualFold(authHeader[:len("Bearer ")], "Bearer ") {
		id.Token = strings.TrimSpace(authHeader[len("Bearer "):])
	}

	return id
}

// wrappedServerStream wraps a grpc.ServerStream to override the context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context carrying the user.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
