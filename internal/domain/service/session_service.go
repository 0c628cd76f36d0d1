package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims defines the custom claims carried by the session cookie.
type SessionClaims struct {
	AccountID uuid.UUID `json:"aid"`
	jwt.RegisteredClaims
}

// SessionTokenService signs and validates the session token stored in the cookie.
type SessionTokenService interface {
	// Issue creates a signed session token for the account and returns its expiry.
	Issue(accountID uuid.UUID) (token string, expiresAt time.Time, err error)

	// Parse validates a session token and returns its claims.
	Parse(token string) (*SessionClaims, error)
}
