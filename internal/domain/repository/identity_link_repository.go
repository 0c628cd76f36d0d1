package repository

import (
	"context"
	"errors"

	"idlink/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrLinkNotFound is returned when an external identity link is not found.
var ErrLinkNotFound = errors.New("identity link not found")

// IdentityLinkRepository defines the operations on external identity links.
type IdentityLinkRepository interface {
	// Create persists a new link.
	Create(ctx context.Context, link *entity.ExternalIdentityLink) error

	// FindByIdentifier retrieves the link for a provider-issued identifier.
	FindByIdentifier(ctx context.Context, identifier string) (*entity.ExternalIdentityLink, error)

	// FindByIDAndAccountID retrieves a link only if it is owned by the given account.
	FindByIDAndAccountID(ctx context.Context, id, accountID uuid.UUID) (*entity.ExternalIdentityLink, error)

	// ListByAccountID returns every link owned by the account, oldest first.
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*entity.ExternalIdentityLink, error)

	// CountByAccountID returns how many links the account owns.
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	// Update saves owner, association flag and profile changes.
	Update(ctx context.Context, link *entity.ExternalIdentityLink) error

	// Delete removes a link by its ID.
	Delete(ctx context.Context, id uuid.UUID) error
}
