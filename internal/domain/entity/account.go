// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// AccountStatus tags an Account as a provisional placeholder or a finalized account.
type AccountStatus string

const (
	// AccountStatusProvisional marks a placeholder created for an external identity that has not picked a username yet.
	AccountStatusProvisional AccountStatus = "provisional"
	// AccountStatusFinalized marks a fully registered, usable account.
	AccountStatusFinalized AccountStatus = "finalized"
)

// String returns the string representation of the AccountStatus.
func (s AccountStatus) String() string {
	return string(s)
}

// IsValid checks if the AccountStatus is a known value.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusProvisional, AccountStatusFinalized:
		return true
	default:
		return false
	}
}

// Account is a local user identity. External identities are attached to it through links.
type Account struct {
	ID        uuid.UUID     // The Global Unique Identifier (GUID) for the account.
	Username  *string       // Unique username; nil while the account is provisional.
	Email     string        // Contact email, taken from the registration form.
	Status    AccountStatus // Provisional until registration completes.
	CreatedAt time.Time     // Timestamp of when this account was created.
	UpdatedAt time.Time     // Timestamp of the last modification to this account.
}

// NewProvisionalAccount builds the placeholder that anchors a newly verified external identity.
func NewProvisionalAccount() *Account {
	return &Account{Status: AccountStatusProvisional}
}

// IsActive reports whether the account has been finalized.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == AccountStatusFinalized
}

// IsProvisional reports whether the account is still a placeholder.
func (a *Account) IsProvisional() bool {
	return a != nil && a.Status == AccountStatusProvisional
}

// DisplayUsername returns the username or an empty string for placeholders.
func (a *Account) DisplayUsername() string {
	if a == nil || a.Username == nil {
		return ""
	}

	return *a.Username
}

// Finalize turns a placeholder into a registered account in place, keeping its ID.
func (a *Account) Finalize(username, email string) {
	a.Username = &username
	a.Email = email
	a.Status = AccountStatusFinalized
}

// IsUsernameRune reports whether r may appear in a username: letters, digits and underscore.
func IsUsernameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// IsValidUsername checks the username charset and that it is 1..maxLength characters long.
// A non-positive maxLength disables the length cap.
func IsValidUsername(username string, maxLength int) bool {
	n := utf8.RuneCountInString(username)
	if n == 0 || (maxLength > 0 && n > maxLength) {
		return false
	}
	for _, r := range username {
		if !IsUsernameRune(r) {
			return false
		}
	}

	return true
}
