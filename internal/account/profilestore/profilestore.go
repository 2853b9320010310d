// Package profilestore defines the contract for the remote profile document
// store.
package profilestore

import (
	"context"

	"github.com/dugoutlabs/dugout/internal/account"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

var (
	// ErrNotFound indicates no profile document exists for the identity.
	// This is an absence, not a failure: during signup propagation the
	// document legitimately lags the credential.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "profile not found")

	// ErrAlreadyExists indicates a create hit an existing document. The
	// signup fallback treats this as success: the original write landed.
	ErrAlreadyExists = apperrors.New(apperrors.CodeProfileConflict, "profile already exists")
)

// ProfileUpdate names the fields an update may touch; nil fields are left
// unchanged.
type ProfileUpdate struct {
	Role        *account.Role
	DisplayName *string
	Premium     *bool
}

// Store persists remote profile documents keyed by user id.
type Store interface {
	// GetProfile returns the profile document, or ErrNotFound.
	GetProfile(ctx context.Context, userID string) (account.Profile, error)

	// CreateProfile writes a new document with create-if-absent semantics:
	// ErrAlreadyExists when a document is already present, never an
	// overwrite.
	CreateProfile(ctx context.Context, profile account.Profile) error

	// UpdateProfile merges the named fields into an existing document.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error

	// DeleteProfile removes the document. Deleting an absent document is not
	// an error.
	DeleteProfile(ctx context.Context, userID string) error

	// CountCoachInvites returns how many pending coach invitations are
	// addressed to the email. Read-only; surfaced during coach signup.
	CountCoachInvites(ctx context.Context, email string) (int, error)
}
