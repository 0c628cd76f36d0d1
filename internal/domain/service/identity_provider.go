// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

import (
	"context"

	"idlink/internal/domain/entity"
)

// VerifiedIdentity is what an identity provider vouches for after a successful token exchange.
type VerifiedIdentity struct {
	Identifier string         // Stable provider-issued identifier.
	Provider   string         // Human readable provider name, e.g. "Google".
	Profile    entity.Profile // Profile fields the service reads.
}

// IdentityProvider exchanges an opaque sign-in token for a verified identity.
// Implementations must not touch local storage.
type IdentityProvider interface {
	// VerifyToken contacts the provider. Any rejection or transport failure is returned as an error.
	VerifyToken(ctx context.Context, token string) (*VerifiedIdentity, error)

	// Name returns the configured provider kind, e.g. "rpx" or "google".
	Name() string
}
