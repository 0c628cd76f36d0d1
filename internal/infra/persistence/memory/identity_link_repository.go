package memory

import (
	"context"
	"slices"
	"strings"

	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/repository"

	"github.com/google/uuid"
)

// identityLinkRepository runs with the store lock held by Execute.
type identityLinkRepository struct {
	store *Store
}

func (r *identityLinkRepository) Create(_ context.Context, link *entity.ExternalIdentityLink) error {
	for _, l := range r.store.data.links {
		if l.Identifier == link.Identifier {
			return domainerrors.ErrIdentityAlreadyExists
		}
	}
	if _, ok := r.store.data.accounts[link.AccountID]; !ok {
		return domainerrors.ErrAccountCreationFailed.WrapMessage("invalid account reference")
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	now := r.store.clock()
	link.CreatedAt = now
	link.UpdatedAt = now
	r.store.data.links[link.ID] = *link

	return nil
}

func (r *identityLinkRepository) FindByIdentifier(_ context.Context, identifier string) (*entity.ExternalIdentityLink, error) {
	for _, l := range r.store.data.links {
		if l.Identifier == identifier {
			return &l, nil
		}
	}

	return nil, repository.ErrLinkNotFound
}

func (r *identityLinkRepository) FindByIDAndAccountID(_ context.Context, id, accountID uuid.UUID) (*entity.ExternalIdentityLink, error) {
	l, ok := r.store.data.links[id]
	if !ok || l.AccountID != accountID {
		return nil, repository.ErrLinkNotFound
	}

	return &l, nil
}

func (r *identityLinkRepository) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*entity.ExternalIdentityLink, error) {
	links := make([]*entity.ExternalIdentityLink, 0)
	for _, l := range r.store.data.links {
		if l.AccountID == accountID {
			links = append(links, &l)
		}
	}
	slices.SortFunc(links, func(a, b *entity.ExternalIdentityLink) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return links, nil
}

func (r *identityLinkRepository) CountByAccountID(_ context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	for _, l := range r.store.data.links {
		if l.AccountID == accountID {
			count++
		}
	}

	return count, nil
}

func (r *identityLinkRepository) Update(_ context.Context, link *entity.ExternalIdentityLink) error {
	existing, ok := r.store.data.links[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	if _, ok := r.store.data.accounts[link.AccountID]; !ok {
		return domainerrors.ErrAccountUpdateFailed.WrapMessage("invalid account reference")
	}

	existing.AccountID = link.AccountID
	existing.IsAssociated = link.IsAssociated
	existing.Profile = link.Profile
	existing.UpdatedAt = r.store.clock()
	r.store.data.links[link.ID] = existing
	link.UpdatedAt = existing.UpdatedAt

	return nil
}

func (r *identityLinkRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.data.links[id]; !ok {
		return repository.ErrLinkNotFound
	}
	delete(r.store.data.links, id)

	return nil
}
