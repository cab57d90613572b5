package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry peeks at the exp claim of a bearer token without verifying
// the signature; validation is the backend's job, the client only needs to
// know whether a refresh is worth attempting before spending a request.
func TokenExpiry(raw string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenExpired reports whether the token carries an exp claim in the past.
// Opaque tokens (no parseable exp) are never reported expired; the backend
// decides for those.
func TokenExpired(raw string) bool {
	expiry, ok := TokenExpiry(raw)
	if !ok {
		return false
	}
	return time.Now().After(expiry)
}
