// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"idlink/internal/domain/entity"
	"idlink/internal/domain/repository"
	"idlink/internal/domain/service"

	"github.com/google/uuid"
)

// User-facing messages queued by the sign-in and association flows.
const (
	MsgSignInError          = "There was an error in signing you in. Try again?"
	MsgAssociateCancelled   = "Unsuccessful login. Try again?"
	MsgAssociateVerifyError = "There was an error in accessing your new login information. Try again?"
	MsgAlreadyAssociated    = "Sorry, this login has already been associated with an existing account."
	MsgAssociateFailed      = "Unfortunately, we were unable to associate your new login with your current account. Try again?"
	MsgAssociated           = "We successfully associated your new login with this account!"
	msgLinkRemovedFormat    = "Your %s login was successfully deleted."
)

// --- Token verification ---

// VerifiedAccount is the local account resolved from a verified external identity.
type VerifiedAccount struct {
	Account *entity.Account
	// Link is the identity link for the verified identifier; nil only if the store is inconsistent.
	Link *entity.ExternalIdentityLink
	// Created is true when this verification provisioned a new placeholder.
	Created bool
}

// TokenVerifier turns a provider token into a local account, provisioning a placeholder for
// identities never seen before. Verification failures wrap domainerrors.ErrVerificationFailed.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*VerifiedAccount, error)
}

// --- Reconciliation ---

// ReconcileInput is the form posted to the sign-in callback.
type ReconcileInput struct {
	Token string
	Next  string
}

// ReconcileKind enumerates the outcomes of a sign-in callback.
type ReconcileKind string

const (
	ReconcileLoggedIn          ReconcileKind = "logged_in"
	ReconcileNeedsRegistration ReconcileKind = "needs_registration"
	ReconcileRejected          ReconcileKind = "rejected"
)

// ReconcileOutcome tells the transport where to send the browser and whom to sign in.
type ReconcileOutcome struct {
	Kind ReconcileKind
	// Account is set for LoggedIn and NeedsRegistration; the session is established for it.
	Account *entity.Account
	// Next is the final destination after sign-in (and registration).
	Next string
	// RedirectURL is where the browser goes now.
	RedirectURL string
	// Message is the error text queued for the user when Rejected.
	Message string
	// Reason is the internal cause of a rejection. Never shown to the user.
	Reason error
}

// ReconcileUsecase maps a sign-in callback onto one of the ReconcileKind outcomes.
// Verifier and store failures become a Rejected outcome rather than an error.
type ReconcileUsecase interface {
	Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileOutcome, error)
}

// --- Provisioning ---

// FinalizeInput carries the registration form for the signed-in placeholder.
type FinalizeInput struct {
	AccountID uuid.UUID
	Username  string
	Email     string
}

// RegistrationDefaults pre-populates the registration form.
type RegistrationDefaults struct {
	Username string
	Email    string
}

// ProvisionerUsecase owns the placeholder account lifecycle.
type ProvisionerUsecase interface {
	// ProvisionPlaceholder creates a provisional account and its unassociated link inside the caller's transaction.
	ProvisionPlaceholder(ctx context.Context, repos repository.RepositoryFactory, identity *service.VerifiedIdentity) (*entity.Account, *entity.ExternalIdentityLink, error)

	// FinalizeRegistration turns the placeholder into a finalized account and associates its link, atomically.
	FinalizeRegistration(ctx context.Context, input FinalizeInput) (*entity.Account, error)

	// SuggestUsername derives a username candidate from a provider profile.
	SuggestUsername(profile entity.Profile) string

	// RegistrationForm returns the initial registration form values for the account.
	RegistrationForm(ctx context.Context, accountID uuid.UUID) (*RegistrationDefaults, error)

	// GetAccount loads an account, e.g. the one named by the session.
	GetAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error)
}

// --- Association ---

// AssociateInput is the form posted to the association callback by a signed-in account.
type AssociateInput struct {
	AccountID uuid.UUID
	Token     string
	Next      string
}

// AssociateOutcome reports whether a new identity was attached to the account.
type AssociateOutcome struct {
	Associated bool
	Link       *entity.ExternalIdentityLink
	// Next is where the browser goes, whatever the result.
	Next string
	// Message is queued as success when Associated, as error otherwise.
	Message string
	Reason  error
}

// RemoveLinkInput names the link a signed-in account wants to drop.
type RemoveLinkInput struct {
	AccountID uuid.UUID
	LinkID    uuid.UUID
}

// RemoveLinkOutcome reports the removal. Refusals are silent towards the user.
type RemoveLinkOutcome struct {
	Removed  bool
	Provider string
	Message  string
	// Refused explains a no-op: ErrLastIdentity, ErrLinkNotFound or ErrAccountNotActive.
	Refused error
}

// AssociationUsecase manages the identities attached to a finalized account.
type AssociationUsecase interface {
	// Associate reports every failure through the outcome so the callback can always redirect.
	Associate(ctx context.Context, input AssociateInput) (*AssociateOutcome, error)
	RemoveLink(ctx context.Context, input RemoveLinkInput) (*RemoveLinkOutcome, error)
	ListLinks(ctx context.Context, accountID uuid.UUID) ([]*entity.ExternalIdentityLink, error)
}
