// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"idlink/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAccountNotFound is a domain-specific error returned when an account is not found.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository defines the standard operations for account persistence.
// The application layer will depend on this interface, not the concrete implementation.
type AccountRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByUsername retrieves a finalized account by its username.
	FindByUsername(ctx context.Context, username string) (*entity.Account, error)

	// Create persists a new account and fills in the generated ID and timestamps.
	Create(ctx context.Context, account *entity.Account) error

	// Update modifies an existing account in the storage.
	Update(ctx context.Context, account *entity.Account) error

	// Delete removes an account. Links must have been repointed or removed beforehand.
	Delete(ctx context.Context, id uuid.UUID) error
}
