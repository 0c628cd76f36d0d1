package impl

import (
	"context"
	"testing"

	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	mockUsecase "idlink/internal/mocks/usecase"
	"idlink/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconcileWithVerifier(t *testing.T) (usecase.ReconcileUsecase, *mockUsecase.MockTokenVerifier) {
	verifier := mockUsecase.NewMockTokenVerifier(t)
	srv := NewReconcileService(ReconcileServiceParams{
		Verifier: verifier,
		Config:   newTestConfig(),
		Logger:   newDiscardLogger(),
	})

	return srv, verifier
}

func TestReconcile_EmptyTokenIsRejectedWithoutVerification(t *testing.T) {
	srv, _ := newReconcileWithVerifier(t)

	outcome, err := srv.Reconcile(context.Background(), usecase.ReconcileInput{Token: "", Next: "/dashboard"})
	require.NoError(t, err)

	assert.Equal(t, usecase.ReconcileRejected, outcome.Kind)
	assert.Equal(t, usecase.MsgSignInError, outcome.Message)
	assert.Equal(t, "/login?next=%2Fdashboard", outcome.RedirectURL)
	assert.Nil(t, outcome.Account)
}

func TestReconcile_DefaultsNextToPostLogin(t *testing.T) {
	srv, _ := newReconcileWithVerifier(t)

	outcome, err := srv.Reconcile(context.Background(), usecase.ReconcileInput{})
	require.NoError(t, err)
	assert.Equal(t, "/accounts/profile", outcome.Next)
	assert.Equal(t, "/login?next=%2Faccounts%2Fprofile", outcome.RedirectURL)
}

func TestReconcile_VerificationFailureIsRejected(t *testing.T) {
	srv, verifier := newReconcileWithVerifier(t)
	verifier.EXPECT().
		Verify(mock.Anything, "bad").
		Return(nil, domainerrors.ErrVerificationFailed.WrapMessage("stat fail"))

	outcome, err := srv.Reconcile(context.Background(), usecase.ReconcileInput{Token: "bad"})
	require.NoError(t, err)
	assert.Equal(t, usecase.ReconcileRejected, outcome.Kind)
	assert.ErrorIs(t, outcome.Reason, domainerrors.ErrVerificationFailed)
}

func TestReconcile_ResolutionErrorsAreRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "store unavailable", err: errors.New("connection refused")},
		{name: "link without account", err: domainerrors.ErrDataInconsistency.WrapMessage("identity link points at a missing account")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, verifier := newReconcileWithVerifier(t)
			verifier.EXPECT().
				Verify(mock.Anything, "tok").
				Return(nil, tt.err)

			outcome, err := srv.Reconcile(context.Background(), usecase.ReconcileInput{Token: "tok", Next: "/dash"})
			require.NoError(t, err)
			assert.Equal(t, usecase.ReconcileRejected, outcome.Kind)
			assert.Equal(t, usecase.MsgSignInError, outcome.Message)
			assert.Equal(t, "/login?next=%2Fdash", outcome.RedirectURL)
			assert.Nil(t, outcome.Account)
			assert.ErrorIs(t, outcome.Reason, tt.err)
		})
	}
}

func TestReconcile_PlaceholderInconsistencies(t *testing.T) {
	placeholder := &entity.Account{ID: uuid.New(), Status: entity.AccountStatusProvisional}

	tests := []struct {
		name string
		link *entity.ExternalIdentityLink
	}{
		{name: "no link", link: nil},
		{name: "link already associated", link: &entity.ExternalIdentityLink{ID: uuid.New(), AccountID: placeholder.ID, IsAssociated: true}},
		{name: "link owned by someone else", link: &entity.ExternalIdentityLink{ID: uuid.New(), AccountID: uuid.New()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, verifier := newReconcileWithVerifier(t)
			verifier.EXPECT().
				Verify(mock.Anything, "tok").
				Return(&usecase.VerifiedAccount{Account: placeholder, Link: tt.link}, nil)

			outcome, err := srv.Reconcile(context.Background(), usecase.ReconcileInput{Token: "tok", Next: "/x"})
			require.NoError(t, err)
			assert.Equal(t, usecase.ReconcileRejected, outcome.Kind)
			assert.Equal(t, usecase.MsgSignInError, outcome.Message)
			assert.ErrorIs(t, outcome.Reason, domainerrors.ErrDataInconsistency)
			assert.Nil(t, outcome.Account, "no session may be established for an inconsistent placeholder")
		})
	}
}

func TestReconcile_NewIdentityNeedsRegistration(t *testing.T) {
	f := newIdentityFixture(t)
	f.expectIdentity("tok", "https://openid.example.com/bob", "OpenID", entity.Profile{PreferredUsername: "bob"})

	outcome, err := f.reconcile.Reconcile(context.Background(), usecase.ReconcileInput{Token: "tok", Next: "/inbox"})
	require.NoError(t, err)

	assert.Equal(t, usecase.ReconcileNeedsRegistration, outcome.Kind)
	require.NotNil(t, outcome.Account)
	assert.True(t, outcome.Account.IsProvisional())
	assert.Equal(t, "/register?next=%2Finbox", outcome.RedirectURL)

	links := f.linksOf(outcome.Account.ID)
	require.Len(t, links, 1)
	assert.False(t, links[0].IsAssociated)
	assert.Equal(t, "OpenID", links[0].Provider)
}

func TestReconcile_ReturningPlaceholderStillNeedsRegistration(t *testing.T) {
	f := newIdentityFixture(t)
	f.expectIdentity("tok-1", "id-bob", "OpenID", entity.Profile{})
	f.expectIdentity("tok-2", "id-bob", "OpenID", entity.Profile{})

	first, err := f.reconcile.Reconcile(context.Background(), usecase.ReconcileInput{Token: "tok-1"})
	require.NoError(t, err)
	second, err := f.reconcile.Reconcile(context.Background(), usecase.ReconcileInput{Token: "tok-2"})
	require.NoError(t, err)

	assert.Equal(t, usecase.ReconcileNeedsRegistration, second.Kind)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.Len(t, f.store.Accounts(), 1, "a known identity must not provision a second placeholder")
}

func TestReconcile_FinalizedAccountLogsIn(t *testing.T) {
	f := newIdentityFixture(t)
	account := f.seedFinalized(t, "carol", "id-carol", "Google")
	f.expectIdentity("tok", "id-carol", "Google", entity.Profile{PreferredUsername: "carol"})

	outcome, err := f.reconcile.Reconcile(context.Background(), usecase.ReconcileInput{Token: "tok", Next: "/inbox"})
	require.NoError(t, err)

	assert.Equal(t, usecase.ReconcileLoggedIn, outcome.Kind)
	assert.Equal(t, account.ID, outcome.Account.ID)
	assert.Equal(t, "/inbox", outcome.RedirectURL)
	assert.Empty(t, outcome.Message)
}

func TestWithNext(t *testing.T) {
	assert.Equal(t, "/login?next=%2Fa%3Fb%3D1", withNext("/login", "/a?b=1"))
	assert.Equal(t, "/register?lang=en&next=%2Fx", withNext("/register?lang=en", "/x"))
}
