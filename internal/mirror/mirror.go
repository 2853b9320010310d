// Package mirror defines the on-device persistence contract: cached remote
// profiles and per-identity flags that survive app restarts and make the
// last known session state available before the network answers.
package mirror

import (
	"context"
	"errors"

	"github.com/dugoutlabs/dugout/internal/account"
	"github.com/dugoutlabs/dugout/internal/telemetry"
)

// ErrNotCached reports that no mirrored row exists for the identity.
var ErrNotCached = errors.New("mirror: not cached")

// Flags carries per-identity local state. Rows are keyed by credential UID,
// so flags set by one account never leak into another account on the same
// device.
type Flags struct {
	Role               account.Role
	OnboardingComplete bool
}

// DefaultFlags returns the flags assumed for an identity with no mirrored
// row.
func DefaultFlags() Flags {
	return Flags{Role: account.DefaultRole}
}

// Store persists the local mirror. Implementations also accept telemetry
// events so operational records share the same database.
type Store interface {
	telemetry.Store

	// PutCachedProfile upserts the mirrored copy of a remote profile.
	PutCachedProfile(ctx context.Context, profile account.Profile) error
	// GetCachedProfile returns the mirrored profile or ErrNotCached.
	GetCachedProfile(ctx context.Context, userID string) (account.Profile, error)
	// DeleteCachedProfile removes the mirrored profile; absence is not an
	// error.
	DeleteCachedProfile(ctx context.Context, userID string) error

	// GetFlags returns the identity's flags, or DefaultFlags when no row
	// exists.
	GetFlags(ctx context.Context, userID string) (Flags, error)
	// PutFlags upserts the identity's flags.
	PutFlags(ctx context.Context, userID string, flags Flags) error

	// ClearIdentity removes the profile and flags for one identity in a
	// single transaction.
	ClearIdentity(ctx context.Context, userID string) error
}
