package account

import "time"

// Identity is the opaque credential representing a signed-in account, as
// reported by the credential provider.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// TokenInfo carries the current token pair for a signed-in identity.
type TokenInfo struct {
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t TokenInfo) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}
