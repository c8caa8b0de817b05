package grpcserver

import "github.com/AmmannChristian/go-casdoorauth/authz"

// User is the authenticated Casdoor user stored in the call context.
type User = authz.User

// Logger is an interface for optional logging.
type Logger = authz.Logger
