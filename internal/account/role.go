// Package account provides the Dugout account domain: roles, profiles, and
// signed-in identities.
package account

import (
	"strings"

	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

// ErrInvalidRole indicates a role outside the known set.
var ErrInvalidRole = apperrors.New(apperrors.CodeRoleInvalid, "role must be athlete or coach")

// Role distinguishes athlete and coach account types, gating which flows and
// permissions apply.
type Role string

const (
	// RoleAthlete is the default account type.
	RoleAthlete Role = "athlete"
	// RoleCoach marks coach accounts.
	RoleCoach Role = "coach"
)

// DefaultRole is the role assumed when no authoritative source is available.
const DefaultRole = RoleAthlete

// Valid reports whether the role is a known account type.
func (r Role) Valid() bool {
	return r == RoleAthlete || r == RoleCoach
}

// String returns the canonical role name.
func (r Role) String() string {
	return string(r)
}

// ParseRole maps a stored or remote role value onto the known set.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAthlete:
		return RoleAthlete, nil
	case RoleCoach:
		return RoleCoach, nil
	default:
		return "", ErrInvalidRole
	}
}

// ParseRoleOrDefault maps a role value onto the known set, falling back to
// the default role for unknown input. Used when reading best-effort caches
// where a corrupt value must not block sign-in.
func ParseRoleOrDefault(value string) Role {
	role, err := ParseRole(value)
	if err != nil {
		return DefaultRole
	}
	return role
}
