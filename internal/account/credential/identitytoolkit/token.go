package identitytoolkit

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dugoutlabs/dugout/internal/account"
)

// identityFromToken extracts identity fields from an ID token. The token is
// parsed unverified: the provider signed it and this client only needs the
// claims, not trust in them beyond what the transport already provides.
func identityFromToken(idToken, fallbackUID, fallbackEmail string) (account.Identity, error) {
	identity := account.Identity{UID: fallbackUID, Email: fallbackEmail}

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(idToken, claims)
	if err != nil {
		if identity.UID == "" {
			return account.Identity{}, fmt.Errorf("unparseable id token and no fallback uid: %w", err)
		}
		return identity, nil
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		identity.UID = sub
	} else if uid, ok := claims["user_id"].(string); ok && uid != "" {
		identity.UID = uid
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		identity.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		identity.EmailVerified = verified
	}
	if issued, err := claims.GetIssuedAt(); err == nil && issued != nil {
		identity.IssuedAt = issued.Time.UTC()
	}
	if expires, err := claims.GetExpirationTime(); err == nil && expires != nil {
		identity.ExpiresAt = expires.Time.UTC()
	}

	if identity.UID == "" {
		return account.Identity{}, fmt.Errorf("id token carries no subject")
	}
	return identity, nil
}
