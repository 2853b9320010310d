package account

import (
	"strings"
	"time"

	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

var (
	// ErrEmptyUserID indicates a missing user id.
	ErrEmptyUserID = apperrors.New(apperrors.CodeNotFound, "user id is required")
	// ErrEmptyDisplayName indicates a missing display name.
	ErrEmptyDisplayName = apperrors.New(apperrors.CodeDisplayNameEmpty, "display name is required")
)

// Profile is the durable remote record of role and display metadata for an
// identity, mirrored locally for offline-tolerant reads.
type Profile struct {
	UserID      string
	Role        Role
	DisplayName string
	Premium     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileInput is the mutable payload used to create or update a profile.
type ProfileInput struct {
	UserID      string
	Role        Role
	DisplayName string
	Premium     bool
}

// NormalizeProfileInput trims strings and defaults the role.
func NormalizeProfileInput(input ProfileInput) ProfileInput {
	input.UserID = strings.TrimSpace(input.UserID)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.Role == "" {
		input.Role = DefaultRole
	}
	return input
}

// NewProfile validates and builds a full profile from input.
func NewProfile(input ProfileInput, now func() time.Time) (Profile, error) {
	normalized := NormalizeProfileInput(input)
	if normalized.UserID == "" {
		return Profile{}, ErrEmptyUserID
	}
	if normalized.DisplayName == "" {
		return Profile{}, ErrEmptyDisplayName
	}
	if !normalized.Role.Valid() {
		return Profile{}, ErrInvalidRole
	}

	if now == nil {
		now = time.Now
	}
	createdAt := now().UTC()

	return Profile{
		UserID:      normalized.UserID,
		Role:        normalized.Role,
		DisplayName: normalized.DisplayName,
		Premium:     normalized.Premium,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}
