package memory

import (
	"context"

	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/repository"

	"github.com/google/uuid"
)

// accountRepository runs with the store lock held by Execute.
type accountRepository struct {
	store *Store
}

func (r *accountRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	a, ok := r.store.data.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	return copyAccount(a), nil
}

func (r *accountRepository) FindByUsername(_ context.Context, username string) (*entity.Account, error) {
	for _, a := range r.store.data.accounts {
		if a.Username != nil && *a.Username == username {
			return copyAccount(a), nil
		}
	}

	return nil, repository.ErrAccountNotFound
}

func (r *accountRepository) Create(_ context.Context, account *entity.Account) error {
	if r.usernameHeldByOther(account) {
		return domainerrors.ErrUsernameTaken
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if _, exists := r.store.data.accounts[account.ID]; exists {
		return domainerrors.ErrAccountCreationFailed.WrapMessage("duplicate account id")
	}

	now := r.store.clock()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.store.data.accounts[account.ID] = *copyAccount(*account)

	return nil
}

func (r *accountRepository) Update(_ context.Context, account *entity.Account) error {
	existing, ok := r.store.data.accounts[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if r.usernameHeldByOther(account) {
		return domainerrors.ErrUsernameTaken
	}

	existing.Username = account.Username
	existing.Email = account.Email
	existing.Status = account.Status
	existing.UpdatedAt = r.store.clock()
	r.store.data.accounts[account.ID] = *copyAccount(existing)
	account.UpdatedAt = existing.UpdatedAt

	return nil
}

func (r *accountRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.data.accounts[id]; !ok {
		return repository.ErrAccountNotFound
	}
	for _, l := range r.store.data.links {
		if l.AccountID == id {
			return domainerrors.ErrDataInconsistency.WrapMessage("account still owns identity links")
		}
	}
	delete(r.store.data.accounts, id)

	return nil
}

func (r *accountRepository) usernameHeldByOther(account *entity.Account) bool {
	if account.Username == nil {
		return false
	}
	for id, a := range r.store.data.accounts {
		if id != account.ID && a.Username != nil && *a.Username == *account.Username {
			return true
		}
	}

	return false
}

func copyAccount(a entity.Account) *entity.Account {
	if a.Username != nil {
		username := *a.Username
		a.Username = &username
	}

	return &a
}
