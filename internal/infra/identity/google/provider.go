// Package google verifies Google ID tokens as an identity provider.
package google

import (
	"context"
	"log/slog"

	"idlink/config"
	"idlink/internal/domain/constants"
	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/service"

	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"
)

const providerName = "Google"

// validateFunc matches idtoken.Validate.
type validateFunc func(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)

// Provider checks signature, audience and issuer of Google ID tokens.
type Provider struct {
	clientID string
	validate validateFunc
	logger   *slog.Logger
}

// NewProvider builds a Provider for the configured OAuth client ID.
func NewProvider(cfg *config.GoogleOAuthConfig, logger *slog.Logger) (*Provider, error) {
	if cfg == nil || cfg.ClientID == "" {
		return nil, errors.New("google client id must be provided")
	}

	return &Provider{
		clientID: cfg.ClientID,
		validate: idtoken.Validate,
		logger:   logger,
	}, nil
}

// Name returns the provider kind.
func (p *Provider) Name() string {
	return constants.IdentityProviderGoogle
}

// VerifyToken validates the ID token and maps its claims onto a profile keyed by the 'sub' claim.
func (p *Provider) VerifyToken(ctx context.Context, token string) (*service.VerifiedIdentity, error) {
	payload, err := p.validate(ctx, token, p.clientID)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, err.Error())
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return nil, errors.Wrapf(domainerrors.ErrVerificationFailed, "invalid issuer: %s", payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, "token has no subject")
	}

	email := stringClaim(payload.Claims, "email")
	profile := entity.Profile{
		DisplayName: stringClaim(payload.Claims, "name"),
		Email:       email,
		PhotoURL:    stringClaim(payload.Claims, "picture"),
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && verified {
		profile.VerifiedEmail = email
	}
	if given := stringClaim(payload.Claims, "given_name"); given != "" {
		profile.PreferredUsername = given
	}

	p.logger.DebugContext(ctx, "Google ID token verified", slog.String("sub", payload.Subject))

	return &service.VerifiedIdentity{
		Identifier: payload.Issuer + "/" + payload.Subject,
		Provider:   providerName,
		Profile:    profile,
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	v, _ := claims[key].(string)

	return v
}
