package httpserver

import "github.com/AmmannChristian/go-casdoorauth/authz"

// User is the authenticated Casdoor user stored in the request context.
type User = authz.User

// Logger is an interface for optional logging.
type Logger = authz.Logger
