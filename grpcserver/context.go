package grpcserver

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userKey contextKey = "grpcserver.user"

// WithUser returns a new context carrying user.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated Casdoor user, if any.
//
// Example:
//
//	func (s *server) ListOrders(ctx context.Context, req *pb.ListOrdersRequest) (*pb.ListOrdersResponse, error) {
//	    user, ok := grpcserver.UserFromContext(ctx)
//	    if !ok {
//	        return nil, status.Error(codes.Unauthenticated, "not authenticated")
//	    }
//	    return s.store.ListOrders(ctx, user.Owner, user.Name)
//	}
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// MustUserFromContext panics if no user is present.
func MustUserFromContext(ctx context.Context) *User {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("grpcserver: user not found in context")
	}
	return user
}
