// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the subset of the provider profile the service reads.
type Profile struct {
	PreferredUsername string `json:"preferredUsername,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	Email             string `json:"email,omitempty"`
	VerifiedEmail     string `json:"verifiedEmail,omitempty"`
	PhotoURL          string `json:"photo,omitempty"`
}

// ContactEmail prefers the provider-verified address over the self-declared one.
func (p Profile) ContactEmail() string {
	if p.VerifiedEmail != "" {
		return p.VerifiedEmail
	}

	return p.Email
}

// ExternalIdentityLink binds one external identity to exactly one Account.
// A link with IsAssociated=false only ever belongs to a provisional account.
type ExternalIdentityLink struct {
	ID           uuid.UUID // The unique ID for this link record.
	AccountID    uuid.UUID // The owning account.
	Provider     string    // Human readable provider name, e.g. "Google", "Twitter".
	Identifier   string    // Stable provider-issued identifier (OpenID URL, 'sub' claim, ...).
	Profile      Profile   // Last profile returned by the provider.
	IsAssociated bool      // True once the identity is bound to a finalized account.
	CreatedAt    time.Time // Timestamp of when the identity was first seen.
	UpdatedAt    time.Time // Timestamp of the last modification to this link.
}

// AssociateWith repoints the link at the given account and marks it associated.
func (l *ExternalIdentityLink) AssociateWith(accountID uuid.UUID) {
	l.AccountID = accountID
	l.IsAssociated = true
}
