package impl

import (
	"context"
	"log/slog"

	deliverycontext "idlink/internal/delivery/context"
	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/repository"
	"idlink/internal/domain/service"
	"idlink/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// tokenVerifier implements usecase.TokenVerifier on top of an IdentityProvider.
type tokenVerifier struct {
	provider    service.IdentityProvider
	provisioner usecase.ProvisionerUsecase
	txManager   repository.TransactionManager
	publisher   service.EventPublisher
	logger      *slog.Logger
}

// TokenVerifierParams holds dependencies for TokenVerifier, injected by Fx.
type TokenVerifierParams struct {
	fx.In

	Provider    service.IdentityProvider
	Provisioner usecase.ProvisionerUsecase
	TxManager   repository.TransactionManager
	Publisher   service.EventPublisher
	Logger      *slog.Logger
}

// NewTokenVerifier is the constructor for tokenVerifier.
func NewTokenVerifier(params TokenVerifierParams) usecase.TokenVerifier {
	return &tokenVerifier{
		provider:    params.Provider,
		provisioner: params.Provisioner,
		txManager:   params.TxManager,
		publisher:   params.Publisher,
		logger:      params.Logger,
	}
}

func (v *tokenVerifier) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, v.logger)
}

// Verify asks the provider to vouch for the token, then finds the account linked to the identity or
// provisions a placeholder for it.
func (v *tokenVerifier) Verify(ctx context.Context, token string) (*usecase.VerifiedAccount, error) {
	identity, err := v.provider.VerifyToken(ctx, token)
	if err != nil {
		v.log(ctx).Warn("Identity provider rejected token", slog.String("provider", v.provider.Name()), slog.Any("error", err))

		if errors.Is(err, domainerrors.ErrVerificationFailed) {
			return nil, err
		}

		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, err.Error())
	}

	result, err := v.findOrProvision(ctx, identity)
	// Two first sign-ins with the same identity can race; the loser sees the unique
	// identifier index fire and finds the winner's link on the second pass.
	if errors.Is(err, domainerrors.ErrIdentityAlreadyExists) {
		result, err = v.findOrProvision(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	if result.Created {
		publishEvent(ctx, v.publisher, v.log(ctx), &service.IdentityEvent{
			Type:      service.IdentityEventPlaceholderCreated,
			AccountID: result.Account.ID.String(),
			LinkID:    result.Link.ID.String(),
			Provider:  result.Link.Provider,
		})
	}

	return result, nil
}

func (v *tokenVerifier) findOrProvision(ctx context.Context, identity *service.VerifiedIdentity) (*usecase.VerifiedAccount, error) {
	result := &usecase.VerifiedAccount{}

	err := v.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		link, err := repos.IdentityLinkRepo().FindByIdentifier(ctx, identity.Identifier)
		if errors.Is(err, repository.ErrLinkNotFound) {
			account, newLink, err := v.provisioner.ProvisionPlaceholder(ctx, repos, identity)
			if err != nil {
				return err
			}
			result.Account, result.Link, result.Created = account, newLink, true

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to look up identity link")
		}

		account, err := repos.AccountRepo().FindByID(ctx, link.AccountID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return domainerrors.ErrDataInconsistency.WrapMessage("identity link points at a missing account")
		}
		if err != nil {
			return errors.Wrap(err, "failed to load linked account")
		}

		if refreshProfile(link, identity) {
			if err := repos.IdentityLinkRepo().Update(ctx, link); err != nil {
				return errors.Wrap(err, "failed to refresh identity profile")
			}
		}

		result.Account, result.Link = account, link

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// refreshProfile stores the latest provider profile on the link and reports whether it changed.
func refreshProfile(link *entity.ExternalIdentityLink, identity *service.VerifiedIdentity) bool {
	if link.Profile == identity.Profile {
		return false
	}
	link.Profile = identity.Profile

	return true
}
