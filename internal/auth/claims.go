// Package auth owns the client-side session: token storage, refresh
// scheduling, and the backend-mediated OAuth handshake.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of JWT claims the client reads to schedule refreshes.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// DecodeClaims parses a JWT payload without verifying its signature. The
// backend remains the authority on token validity; this decode only exists
// so the client can refresh before an expiry instead of after a 401.
func DecodeClaims(token string) (*Claims, error) {
	registered := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, registered); err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}

	claims := &Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	return claims, nil
}

// ExpiresWithin reports whether the token expires inside the buffer window.
// Tokens without an exp claim report false.
func (c *Claims) ExpiresWithin(buffer time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(c.ExpiresAt) <= buffer
}

// TokenNeedsRefresh reports whether the access token is expired, expires
// within buffer, or cannot be decoded at all.
func TokenNeedsRefresh(token string, buffer time.Duration) bool {
	claims, err := DecodeClaims(token)
	if err != nil {
		return true
	}
	return claims.ExpiresWithin(buffer)
}
