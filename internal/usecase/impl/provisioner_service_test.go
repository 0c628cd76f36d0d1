package impl

import (
	"context"
	"testing"

	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/repository"
	"idlink/internal/domain/service"
	"idlink/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestUsername(t *testing.T) {
	tests := []struct {
		name    string
		profile entity.Profile
		want    string
	}{
		{name: "strips punctuation", profile: entity.Profile{PreferredUsername: "jo@hn!"}, want: "john"},
		{name: "falls back to display name", profile: entity.Profile{DisplayName: "Jo Hn"}, want: "JoHn"},
		{name: "preferred wins over display", profile: entity.Profile{PreferredUsername: "jdoe", DisplayName: "John Doe"}, want: "jdoe"},
		{name: "keeps underscores and digits", profile: entity.Profile{PreferredUsername: "j_doe-42"}, want: "j_doe42"},
		{name: "keeps unicode letters", profile: entity.Profile{DisplayName: "José María"}, want: "JoséMaría"},
		{name: "drops plus sign", profile: entity.Profile{PreferredUsername: "a+b"}, want: "ab"},
		{name: "empty profile", profile: entity.Profile{}, want: ""},
	}

	srv := NewProvisionerService(ProvisionerServiceParams{Logger: newDiscardLogger()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, srv.SuggestUsername(tt.profile))
		})
	}
}

func TestProvisionerService_ProvisionPlaceholder(t *testing.T) {
	f := newIdentityFixture(t)

	identity := &service.VerifiedIdentity{
		Identifier: "https://example.com/id/1",
		Provider:   "Twitter",
		Profile:    entity.Profile{PreferredUsername: "tw"},
	}

	var account *entity.Account
	var link *entity.ExternalIdentityLink
	err := f.txManager.Execute(context.Background(), func(repos repository.RepositoryFactory) error {
		var err error
		account, link, err = f.provisioner.ProvisionPlaceholder(context.Background(), repos, identity)

		return err
	})
	require.NoError(t, err)

	assert.True(t, account.IsProvisional())
	assert.Nil(t, account.Username)
	assert.Equal(t, account.ID, link.AccountID)
	assert.False(t, link.IsAssociated)
	assert.Equal(t, "Twitter", link.Provider)
	assert.Len(t, f.store.Accounts(), 1)
	assert.Len(t, f.store.Links(), 1)
}

func TestProvisionerService_FinalizeRegistration(t *testing.T) {
	f := newIdentityFixture(t)
	f.expectIdentity("tok", "id-1", "Google", entity.Profile{PreferredUsername: "alice"})

	verified, err := f.verifier.Verify(context.Background(), "tok")
	require.NoError(t, err)

	account, err := f.provisioner.FinalizeRegistration(context.Background(), usecase.FinalizeInput{
		AccountID: verified.Account.ID,
		Username:  "alice",
		Email:     "alice@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, verified.Account.ID, account.ID, "finalization keeps the account id")
	assert.True(t, account.IsActive())
	assert.Equal(t, "alice", account.DisplayUsername())

	stored, ok := f.account(t, account.ID)
	require.True(t, ok)
	assert.Equal(t, entity.AccountStatusFinalized, stored.Status)
	assert.Equal(t, "alice@example.com", stored.Email)

	links := f.linksOf(account.ID)
	require.Len(t, links, 1)
	assert.True(t, links[0].IsAssociated)

	assert.Equal(t, []service.IdentityEventType{
		service.IdentityEventPlaceholderCreated,
		service.IdentityEventAccountFinalized,
	}, f.eventTypes())
}

func TestProvisionerService_FinalizeRegistration_UsernameTaken(t *testing.T) {
	f := newIdentityFixture(t)
	f.seedFinalized(t, "alice", "id-alice", "Google")

	f.expectIdentity("tok", "id-2", "Yahoo", entity.Profile{})
	verified, err := f.verifier.Verify(context.Background(), "tok")
	require.NoError(t, err)

	_, err = f.provisioner.FinalizeRegistration(context.Background(), usecase.FinalizeInput{
		AccountID: verified.Account.ID,
		Username:  "alice",
		Email:     "imposter@example.com",
	})
	require.ErrorIs(t, err, domainerrors.ErrUsernameTaken)

	stored, ok := f.account(t, verified.Account.ID)
	require.True(t, ok)
	assert.True(t, stored.IsProvisional())
	assert.False(t, f.linksOf(verified.Account.ID)[0].IsAssociated)
}

func TestProvisionerService_FinalizeRegistration_NotProvisional(t *testing.T) {
	f := newIdentityFixture(t)
	account := f.seedFinalized(t, "alice", "id-alice", "Google")

	_, err := f.provisioner.FinalizeRegistration(context.Background(), usecase.FinalizeInput{
		AccountID: account.ID,
		Username:  "alice2",
		Email:     "a@example.com",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotProvisional)
}

func TestProvisionerService_FinalizeRegistration_UnknownAccount(t *testing.T) {
	f := newIdentityFixture(t)

	_, err := f.provisioner.FinalizeRegistration(context.Background(), usecase.FinalizeInput{
		AccountID: uuid.New(),
		Username:  "ghost",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)
}

// failingLinkUpdates makes every IdentityLinkRepository.Update inside a transaction fail.
type failingLinkUpdates struct {
	inner repository.TransactionManager
	err   error
}

func (m *failingLinkUpdates) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	return m.inner.Execute(ctx, func(repos repository.RepositoryFactory) error {
		return fn(&failingFactory{RepositoryFactory: repos, err: m.err})
	})
}

type failingFactory struct {
	repository.RepositoryFactory
	err error
}

func (f *failingFactory) IdentityLinkRepo() repository.IdentityLinkRepository {
	return &failingLinkRepo{IdentityLinkRepository: f.RepositoryFactory.IdentityLinkRepo(), err: f.err}
}

type failingLinkRepo struct {
	repository.IdentityLinkRepository
	err error
}

func (r *failingLinkRepo) Update(context.Context, *entity.ExternalIdentityLink) error {
	return r.err
}

func TestProvisionerService_FinalizeRegistration_IsAtomic(t *testing.T) {
	injected := errors.New("disk full")
	f := newIdentityFixtureWithTx(t, func(inner repository.TransactionManager) repository.TransactionManager {
		return &failingLinkUpdates{inner: inner, err: injected}
	})
	f.expectIdentity("tok", "id-1", "Google", entity.Profile{PreferredUsername: "alice"})

	verified, err := f.verifier.Verify(context.Background(), "tok")
	require.NoError(t, err)

	_, err = f.provisioner.FinalizeRegistration(context.Background(), usecase.FinalizeInput{
		AccountID: verified.Account.ID,
		Username:  "alice",
		Email:     "alice@example.com",
	})
	require.ErrorIs(t, err, injected)

	stored, ok := f.account(t, verified.Account.ID)
	require.True(t, ok)
	assert.True(t, stored.IsProvisional(), "account update must roll back with the link update")
	assert.Nil(t, stored.Username)
	assert.False(t, f.linksOf(verified.Account.ID)[0].IsAssociated)
	assert.NotContains(t, f.eventTypes(), service.IdentityEventAccountFinalized)
}

func TestProvisionerService_RegistrationForm(t *testing.T) {
	f := newIdentityFixture(t)
	f.expectIdentity("tok", "id-1", "Google", entity.Profile{
		DisplayName:   "Jo Hn",
		Email:         "jo@example.com",
		VerifiedEmail: "verified@example.com",
	})

	verified, err := f.verifier.Verify(context.Background(), "tok")
	require.NoError(t, err)

	defaults, err := f.provisioner.RegistrationForm(context.Background(), verified.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "JoHn", defaults.Username)
	assert.Equal(t, "jo@example.com", defaults.Email)

	empty, err := f.provisioner.RegistrationForm(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, &usecase.RegistrationDefaults{}, empty)
}

func TestProvisionerService_GetAccount(t *testing.T) {
	f := newIdentityFixture(t)
	account := f.seedFinalized(t, "alice", "id-alice", "Google")

	got, err := f.provisioner.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.DisplayUsername())

	_, err = f.provisioner.GetAccount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)
}
