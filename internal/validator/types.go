package validator

import (
	"context"
	"errors"
)

// TokenParser turns a bearer token into the Casdoor user it was issued to.
// Implementations must be safe for concurrent use.
type TokenParser interface {
	ParseJWTToken(ctx context.Context, token string) (*User, error)
}

// Logger is an interface for optional logging.
type Logger interface {
	Printf(format string, args ...any)
}

// NamedRef is the reference shape Casdoor uses for roles and permissions
// embedded in a user record.
type NamedRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// User is the subset of the Casdoor user record carried in access tokens.
type User struct {
	Owner       string     `json:"owner"`
	Name        string     `json:"name"`
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Avatar      string     `json:"avatar"`
	IsAdmin     bool       `json:"isAdmin"`
	Groups      []string   `json:"groups"`
	Roles       []NamedRef `json:"roles"`
	Permissions []NamedRef `json:"permissions"`
}

// RoleNames returns the names of the user's roles.
func (u *User) RoleNames() []string {
	return refNames(u.Roles)
}

// PermissionNames returns the names of the user's permissions.
func (u *User) PermissionNames() []string {
	return refNames(u.Permissions)
}

func refNames(refs []NamedRef) []string {
	if len(refs) == 0 {
		return nil
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Name != "" {
			names = append(names, ref.Name)
		}
	}
	return names
}

// ErrAuth is matched by every AuthError via errors.Is.
var ErrAuth = errors.New("validator: authentication failed")

// AuthError is the structured failure returned by token parsers.
type AuthError struct {
	Reason string
	Err    error
}

// Error returns the failure reason and the underlying cause, if any.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return "validator: " + e.Reason
	}
	return "validator: " + e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is enables errors.Is(err, ErrAuth).
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

func authError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

// NewAuthError wraps err as an *AuthError with the given reason.
func NewAuthError(reason string, err error) error {
	return authError(reason, err)
}
