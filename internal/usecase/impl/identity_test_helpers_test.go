package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"idlink/config"
	"idlink/internal/domain/entity"
	"idlink/internal/domain/repository"
	"idlink/internal/domain/service"
	"idlink/internal/infra/persistence/memory"
	mockService "idlink/internal/mocks/service"
	"idlink/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Session.Secret = "test-secret"
	cfg.Storage.Driver = "memory"
	config.ApplyDefaults(cfg)

	return cfg
}

// identityFixture wires the real services over the in-memory store with a mocked provider.
type identityFixture struct {
	store       *memory.Store
	txManager   repository.TransactionManager
	provider    *mockService.MockIdentityProvider
	provisioner usecase.ProvisionerUsecase
	verifier    usecase.TokenVerifier
	reconcile   usecase.ReconcileUsecase
	association usecase.AssociationUsecase

	mu     sync.Mutex
	events []service.IdentityEvent
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()

	return newIdentityFixtureWithTx(t, nil)
}

// newIdentityFixtureWithTx lets a test wrap the store's transaction manager, e.g. to inject faults.
func newIdentityFixtureWithTx(t *testing.T, wrap func(repository.TransactionManager) repository.TransactionManager) *identityFixture {
	t.Helper()

	f := &identityFixture{store: memory.NewStore()}
	f.txManager = memory.NewTransactionManager(f.store)
	if wrap != nil {
		f.txManager = wrap(f.txManager)
	}

	f.provider = mockService.NewMockIdentityProvider(t)
	f.provider.EXPECT().Name().Return("rpx").Maybe()

	publisher := mockService.NewMockEventPublisher(t)
	publisher.EXPECT().
		PublishIdentityEvent(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, event *service.IdentityEvent) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, *event)

			return nil
		}).
		Maybe()

	cfg := newTestConfig()
	logger := newDiscardLogger()

	f.provisioner = NewProvisionerService(ProvisionerServiceParams{
		TxManager: f.txManager,
		Publisher: publisher,
		Logger:    logger,
	})
	f.verifier = NewTokenVerifier(TokenVerifierParams{
		Provider:    f.provider,
		Provisioner: f.provisioner,
		TxManager:   f.txManager,
		Publisher:   publisher,
		Logger:      logger,
	})
	f.reconcile = NewReconcileService(ReconcileServiceParams{
		Verifier: f.verifier,
		Config:   cfg,
		Logger:   logger,
	})
	f.association = NewAssociationService(AssociationServiceParams{
		Verifier:  f.verifier,
		TxManager: f.txManager,
		Publisher: publisher,
		Config:    cfg,
		Logger:    logger,
	})

	return f
}

// expectIdentity makes the provider vouch for identifier when it sees token.
func (f *identityFixture) expectIdentity(token, identifier, provider string, profile entity.Profile) {
	f.provider.EXPECT().
		VerifyToken(mock.Anything, token).
		Return(&service.VerifiedIdentity{
			Identifier: identifier,
			Provider:   provider,
			Profile:    profile,
		}, nil).
		Once()
}

// seedFinalized signs in a new identity and completes its registration.
func (f *identityFixture) seedFinalized(t *testing.T, username, identifier, provider string) *entity.Account {
	t.Helper()

	token := "seed-" + identifier
	f.expectIdentity(token, identifier, provider, entity.Profile{PreferredUsername: username})

	verified, err := f.verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	require.True(t, verified.Account.IsProvisional())

	account, err := f.provisioner.FinalizeRegistration(context.Background(), usecase.FinalizeInput{
		AccountID: verified.Account.ID,
		Username:  username,
		Email:     username + "@example.com",
	})
	require.NoError(t, err)

	return account
}

func (f *identityFixture) eventTypes() []service.IdentityEventType {
	f.mu.Lock()
	defer f.mu.Unlock()

	types := make([]service.IdentityEventType, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}

	return types
}

func (f *identityFixture) linksOf(accountID uuid.UUID) []entity.ExternalIdentityLink {
	var out []entity.ExternalIdentityLink
	for _, l := range f.store.Links() {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}

	return out
}

func (f *identityFixture) account(t *testing.T, id uuid.UUID) (entity.Account, bool) {
	t.Helper()

	for _, a := range f.store.Accounts() {
		if a.ID == id {
			return a, true
		}
	}

	return entity.Account{}, false
}
