package httpserver

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userKey contextKey = "httpserver.user"

// WithUser returns a new context carrying user.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated Casdoor user, if any. Requests
// permitted as anonymous on a public path carry no user.
//
// Example:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    user, ok := httpserver.UserFromContext(r.Context())
//	    if !ok {
//	        http.Error(w, "not authenticated", http.StatusUnauthorized)
//	        return
//	    }
//	    fmt.Fprintf(w, "hello %s", user.Name)
//	}
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// MustUserFromContext is UserFromContext for handlers behind the middleware
// on protected paths. It panics if no user is present.
func MustUserFromContext(ctx context.Context) *User {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("httpserver: user not found in context")
	}
	return user
}
