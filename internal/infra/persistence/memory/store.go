// Package memory is an in-process identity record store. Transactions are serialized and
// rolled back by restoring a snapshot, so it behaves like the postgres store for a single node.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"idlink/internal/domain/entity"
	"idlink/internal/domain/repository"

	"github.com/google/uuid"
)

type state struct {
	accounts map[uuid.UUID]entity.Account
	links    map[uuid.UUID]entity.ExternalIdentityLink
}

func (s *state) clone() *state {
	return &state{
		accounts: maps.Clone(s.accounts),
		links:    maps.Clone(s.links),
	}
}

// Store holds accounts and identity links.
type Store struct {
	mu    sync.Mutex
	data  *state
	clock func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			accounts: make(map[uuid.UUID]entity.Account),
			links:    make(map[uuid.UUID]entity.ExternalIdentityLink),
		},
		clock: time.Now,
	}
}

// NewTransactionManager exposes the store through the repository.TransactionManager contract.
func NewTransactionManager(store *Store) repository.TransactionManager {
	return store
}

// Execute runs fn with exclusive access to the store. Any error or panic restores the state seen on entry.
func (s *Store) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(&repositoryFactory{store: s}); err != nil {
		return err
	}
	committed = true

	return nil
}

// Accounts returns a copy of every stored account.
func (s *Store) Accounts() []entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Account, 0, len(s.data.accounts))
	for _, a := range s.data.accounts {
		out = append(out, a)
	}

	return out
}

// Links returns a copy of every stored identity link.
func (s *Store) Links() []entity.ExternalIdentityLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.ExternalIdentityLink, 0, len(s.data.links))
	for _, l := range s.data.links {
		out = append(out, l)
	}

	return out
}

type repositoryFactory struct {
	store *Store
}

func (f *repositoryFactory) AccountRepo() repository.AccountRepository {
	return &accountRepository{store: f.store}
}

func (f *repositoryFactory) IdentityLinkRepo() repository.IdentityLinkRepository {
	return &identityLinkRepository{store: f.store}
}
