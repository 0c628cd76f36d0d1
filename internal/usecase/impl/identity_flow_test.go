package impl

import (
	"context"
	"testing"

	"idlink/internal/domain/entity"
	"idlink/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sign in with a new identity, register, attach a second identity, drop the first and sign in again.
func TestIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)

	f.expectIdentity("google-1", "https://www.google.com/profiles/dana", "Google", entity.Profile{
		PreferredUsername: "dana.k",
		Email:             "dana@example.com",
	})
	signIn, err := f.reconcile.Reconcile(ctx, usecase.ReconcileInput{Token: "google-1", Next: "/home"})
	require.NoError(t, err)
	require.Equal(t, usecase.ReconcileNeedsRegistration, signIn.Kind)

	form, err := f.provisioner.RegistrationForm(ctx, signIn.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "danak", form.Username)
	assert.Equal(t, "dana@example.com", form.Email)

	account, err := f.provisioner.FinalizeRegistration(ctx, usecase.FinalizeInput{
		AccountID: signIn.Account.ID,
		Username:  form.Username,
		Email:     form.Email,
	})
	require.NoError(t, err)
	assert.Equal(t, signIn.Account.ID, account.ID, "registration keeps the placeholder's identity")

	f.expectIdentity("yahoo-1", "https://me.yahoo.com/dana", "Yahoo!", entity.Profile{})
	associated, err := f.association.Associate(ctx, usecase.AssociateInput{AccountID: account.ID, Token: "yahoo-1"})
	require.NoError(t, err)
	require.True(t, associated.Associated)

	links := f.linksOf(account.ID)
	require.Len(t, links, 2)
	for _, l := range links {
		if l.Provider == "Google" {
			removed, err := f.association.RemoveLink(ctx, usecase.RemoveLinkInput{AccountID: account.ID, LinkID: l.ID})
			require.NoError(t, err)
			require.True(t, removed.Removed)
		}
	}

	f.expectIdentity("yahoo-2", "https://me.yahoo.com/dana", "Yahoo!", entity.Profile{})
	again, err := f.reconcile.Reconcile(ctx, usecase.ReconcileInput{Token: "yahoo-2"})
	require.NoError(t, err)
	assert.Equal(t, usecase.ReconcileLoggedIn, again.Kind)
	assert.Equal(t, account.ID, again.Account.ID)

	// The dropped identity is a stranger now and starts over as a fresh placeholder.
	f.expectIdentity("google-2", "https://www.google.com/profiles/dana", "Google", entity.Profile{})
	stranger, err := f.reconcile.Reconcile(ctx, usecase.ReconcileInput{Token: "google-2"})
	require.NoError(t, err)
	assert.Equal(t, usecase.ReconcileNeedsRegistration, stranger.Kind)
	assert.NotEqual(t, account.ID, stranger.Account.ID)
}
