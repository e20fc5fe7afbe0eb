package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessExpiry returns the exp claim of a JWT-shaped access credential.
// Credentials are opaque; this is for display and logs only, the signature is
// not checked and nothing decides on it.
func AccessExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// AccessExpiry returns the expiry of the current access credential, if any.
func (m *Manager) AccessExpiry() (time.Time, bool) {
	access, _, _ := m.Credentials()
	return AccessExpiry(access)
}
