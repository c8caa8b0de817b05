package authz

import (
	"errors"
	"fmt"
	"strings"
)

// MatchMode defines how a list of required role or permission names is matched.
type MatchMode string

const (
	// MatchAny allows access if any required name is present.
	MatchAny MatchMode = "any"
	// MatchAll allows access only if all required names are present.
	MatchAll MatchMode = "all"
)

// Policy configures authorization checks against the roles and permissions
// Casdoor embeds in the user record.
//
// The policy is disabled when both RequiredRoles and RequiredPermissions are
// empty. Match modes default to any; unknown modes are normalized to all
// (fail-closed). When AllowAdmin is set, users flagged isAdmin bypass the
// role and permission checks.
type Policy struct {
	RequiredRoles       []string
	RequiredPermissions []string

	RoleMatchMode       MatchMode
	PermissionMatchMode MatchMode

	AllowAdmin bool
}

// ErrPermissionDenied indicates that authorization requirements are not satisfied.
var ErrPermissionDenied = errors.New("authz: permission denied")

// PermissionDeniedError carries structured authorization failure details.
type PermissionDeniedError struct {
	MissingRoles       []string
	MissingPermissions []string
}

// Error returns a concise authorization error message.
func (e *PermissionDeniedError) Error() string {
	hasRoles := len(e.MissingRoles) > 0
	hasPermissions := len(e.MissingPermissions) > 0

	switch {
	case hasRoles && hasPermissions:
		return fmt.Sprintf("authz: missing required roles %v and permissions %v", e.MissingRoles, e.MissingPermissions)
	case hasRoles:
		return fmt.Sprintf("authz: missing required roles %v", e.MissingRoles)
	case hasPermissions:
		return fmt.Sprintf("authz: missing required permissions %v", e.MissingPermissions)
	default:
		return ErrPermissionDenied.Error()
	}
}

// Is enables errors.Is(err, ErrPermissionDenied).
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// Evaluator evaluates a Policy against Casdoor users.
type Evaluator struct {
	requiredRoles       []string
	requiredPermissions []string
	roleMode            MatchMode
	permissionMode      MatchMode
	allowAdmin          bool
}

// NewEvaluator creates a policy evaluator with normalized defaults.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{
		requiredRoles:       normalizeValues(policy.RequiredRoles),
		requiredPermissions: normalizeValues(policy.RequiredPermissions),
		roleMode:            normalizeMatchMode(policy.RoleMatchMode),
		permissionMode:      normalizeMatchMode(policy.PermissionMatchMode),
		allowAdmin:          policy.AllowAdmin,
	}
}

// Enabled reports whether this policy performs authorization checks.
func (e *Evaluator) Enabled() bool {
	return e != nil && (len(e.requiredRoles) > 0 || len(e.requiredPermissions) > 0)
}

// Authorize evaluates the policy against user. A nil user never passes an
// enabled policy.
func (e *Evaluator) Authorize(user *User) error {
	if !e.Enabled() {
		return nil
	}
	if user == nil {
		return &PermissionDeniedError{MissingRoles: e.requiredRoles, MissingPermissions: e.requiredPermissions}
	}
	if e.allowAdmin && user.IsAdmin {
		return nil
	}

	missingRoles := matchRequired(e.requiredRoles, toSet(user.RoleNames()), e.roleMode)
	missingPermissions := matchRequired(e.requiredPermissions, toSet(user.PermissionNames()), e.permissionMode)
	if len(missingRoles) == 0 && len(missingPermissions) == 0 {
		return nil
	}

	return &PermissionDeniedError{
		MissingRoles:       missingRoles,
		MissingPermissions: missingPermissions,
	}
}

func normalizeMatchMode(mode MatchMode) MatchMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case "", string(MatchAny):
		return MatchAny
	default:
		return MatchAll
	}
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func matchRequired(required []string, available map[string]struct{}, mode MatchMode) []string {
	if len(required) == 0 {
		return nil
	}

	if mode == MatchAny {
		for _, value := range required {
			if _, ok := available[value]; ok {
				return nil
			}
		}
		missing := make([]string, len(required))
		copy(missing, required)
		return missing
	}

	missing := make([]string, 0, len(required))
	for _, value := range required {
		if _, ok := available[value]; !ok {
			missing = append(missing, value)
		}
	}

	return missing
}
