package google

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"idlink/config"
	domainerrors "idlink/internal/domain/errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func newTestProvider(t *testing.T, validate validateFunc) *Provider {
	t.Helper()

	p, err := NewProvider(&config.GoogleOAuthConfig{ClientID: "client-123"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	p.validate = validate

	return p
}

func TestProvider_VerifyToken(t *testing.T) {
	p := newTestProvider(t, func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		assert.Equal(t, "id-token", token)
		assert.Equal(t, "client-123", audience)

		return &idtoken.Payload{
			Issuer:  "https://accounts.google.com",
			Subject: "10769150350006150715113082367",
			Claims: map[string]any{
				"email":          "jo@example.com",
				"email_verified": true,
				"name":           "Jo Hn",
				"given_name":     "Jo",
				"picture":        "https://example.com/p.png",
			},
		}, nil
	})

	identity, err := p.VerifyToken(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com/10769150350006150715113082367", identity.Identifier)
	assert.Equal(t, "Google", identity.Provider)
	assert.Equal(t, "Jo", identity.Profile.PreferredUsername)
	assert.Equal(t, "Jo Hn", identity.Profile.DisplayName)
	assert.Equal(t, "jo@example.com", identity.Profile.VerifiedEmail)
	assert.Equal(t, "google", p.Name())
}

func TestProvider_VerifyToken_UnverifiedEmail(t *testing.T) {
	p := newTestProvider(t, func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{
			Issuer:  "accounts.google.com",
			Subject: "42",
			Claims:  map[string]any{"email": "x@example.com", "email_verified": false},
		}, nil
	})

	identity, err := p.VerifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "x@example.com", identity.Profile.Email)
	assert.Empty(t, identity.Profile.VerifiedEmail)
}

func TestProvider_VerifyToken_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		validate validateFunc
	}{
		{
			name: "invalid signature",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return nil, errors.New("idtoken: invalid signature")
			},
		},
		{
			name: "foreign issuer",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return &idtoken.Payload{Issuer: "https://evil.example.com", Subject: "1"}, nil
			},
		},
		{
			name: "missing subject",
			validate: func(context.Context, string, string) (*idtoken.Payload, error) {
				return &idtoken.Payload{Issuer: "accounts.google.com"}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.validate)
			_, err := p.VerifyToken(context.Background(), "t")
			assert.ErrorIs(t, err, domainerrors.ErrVerificationFailed)
		})
	}
}

func TestNewProvider_RequiresClientID(t *testing.T) {
	_, err := NewProvider(nil, slog.Default())
	assert.Error(t, err)
}
