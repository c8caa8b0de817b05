package authz

import (
	"github.com/AmmannChristian/go-casdoorauth/internal/validator"
)

// User is the Casdoor user record returned by a TokenParser.
type User = validator.User

// NamedRef is an owner/name reference to a Casdoor role or permission.
type NamedRef = validator.NamedRef

// TokenParser turns a bearer token into the user it was issued to.
type TokenParser = validator.TokenParser

// Logger is an interface for optional logging.
type Logger = validator.Logger

// AuthError is the structured failure returned by token parsers.
type AuthError = validator.AuthError

// ErrAuth is matched by every AuthError via errors.Is.
var ErrAuth = validator.ErrAuth
