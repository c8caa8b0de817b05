package casdoorclient

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor adds "authorization: Bearer <token>" to the outgoing
// metadata of every unary call. The call fails if no token can be obtained.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "orders:9090",
//	    grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
//	)
func (tm *TokenManager) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := tm.outgoingContext(ctx)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is the streaming counterpart of UnaryClientInterceptor.
func (tm *TokenManager) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := tm.outgoingContext(ctx)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// DialOptions returns the interceptors as dial options.
func (tm *TokenManager) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
		grpc.WithStreamInterceptor(tm.StreamClientInterceptor()),
	}
}

func (tm *TokenManager) outgoingContext(ctx context.Context) (context.Context, error) {
	token, err := tm.Token(ctx)
	if err != nil {
		return ctx, fmt.Errorf("casdoorclient: failed to get token: %w", err)
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token), nil
}
