// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "idlink/internal/delivery/context"
	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/repository"
	"idlink/internal/domain/service"
	"idlink/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// provisionerService implements the ProvisionerUsecase interface.
type provisionerService struct {
	txManager repository.TransactionManager
	publisher service.EventPublisher
	logger    *slog.Logger
}

// ProvisionerServiceParams holds dependencies for ProvisionerService, injected by Fx.
type ProvisionerServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Publisher service.EventPublisher
	Logger    *slog.Logger
}

// NewProvisionerService is the constructor for provisionerService.
func NewProvisionerService(params ProvisionerServiceParams) usecase.ProvisionerUsecase {
	return &provisionerService{
		txManager: params.TxManager,
		publisher: params.Publisher,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *provisionerService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ProvisionPlaceholder creates the provisional account and its unassociated link.
func (srv *provisionerService) ProvisionPlaceholder(
	ctx context.Context,
	repos repository.RepositoryFactory,
	identity *service.VerifiedIdentity,
) (*entity.Account, *entity.ExternalIdentityLink, error) {
	account := entity.NewProvisionalAccount()
	if err := repos.AccountRepo().Create(ctx, account); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create placeholder account")
	}

	link := &entity.ExternalIdentityLink{
		AccountID:    account.ID,
		Provider:     identity.Provider,
		Identifier:   identity.Identifier,
		Profile:      identity.Profile,
		IsAssociated: false,
	}
	if err := repos.IdentityLinkRepo().Create(ctx, link); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create placeholder link")
	}

	srv.log(ctx).Info("Provisioned placeholder account",
		slog.Any("accountID", account.ID),
		slog.String("provider", link.Provider),
	)

	return account, link, nil
}

// FinalizeRegistration sets the username and email, marks the account finalized and its sole link
// associated. Both writes commit together or not at all.
func (srv *provisionerService) FinalizeRegistration(ctx context.Context, input usecase.FinalizeInput) (*entity.Account, error) {
	var finalized *entity.Account
	var link *entity.ExternalIdentityLink

	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		accountRepo := repos.AccountRepo()
		linkRepo := repos.IdentityLinkRepo()

		account, err := accountRepo.FindByID(ctx, input.AccountID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return domainerrors.ErrAccountNotFound
		}
		if err != nil {
			return errors.Wrap(err, "failed to load account")
		}
		if !account.IsProvisional() {
			return domainerrors.ErrAccountNotProvisional
		}

		holder, err := accountRepo.FindByUsername(ctx, input.Username)
		switch {
		case err == nil && holder.ID != account.ID:
			return domainerrors.ErrUsernameTaken
		case err != nil && !errors.Is(err, repository.ErrAccountNotFound):
			return errors.Wrap(err, "failed to check username")
		}

		links, err := linkRepo.ListByAccountID(ctx, account.ID)
		if err != nil {
			return errors.Wrap(err, "failed to load placeholder link")
		}
		if len(links) != 1 {
			return domainerrors.ErrDataInconsistency.WrapMessage("placeholder must own exactly one identity link")
		}

		account.Finalize(input.Username, input.Email)
		if err := accountRepo.Update(ctx, account); err != nil {
			return errors.Wrap(err, "failed to finalize account")
		}

		link = links[0]
		link.IsAssociated = true
		if err := linkRepo.Update(ctx, link); err != nil {
			return errors.Wrap(err, "failed to associate placeholder link")
		}

		finalized = account

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Registration not finalized", slog.Any("accountID", input.AccountID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Registration finalized", slog.Any("accountID", finalized.ID), slog.String("username", input.Username))

	publishEvent(ctx, srv.publisher, srv.log(ctx), &service.IdentityEvent{
		Type:      service.IdentityEventAccountFinalized,
		AccountID: finalized.ID.String(),
		LinkID:    link.ID.String(),
		Provider:  link.Provider,
	})

	return finalized, nil
}

// SuggestUsername takes the preferred username, or the display name when that is empty,
// and keeps only letters, digits and underscores.
func (srv *provisionerService) SuggestUsername(profile entity.Profile) string {
	return suggestUsername(profile)
}

func suggestUsername(profile entity.Profile) string {
	candidate := profile.PreferredUsername
	if candidate == "" {
		candidate = profile.DisplayName
	}

	return strings.Map(func(r rune) rune {
		if entity.IsUsernameRune(r) {
			return r
		}

		return -1
	}, candidate)
}

// RegistrationForm suggests a username and email from the placeholder's link.
// An account without links gets an empty form.
func (srv *provisionerService) RegistrationForm(ctx context.Context, accountID uuid.UUID) (*usecase.RegistrationDefaults, error) {
	var links []*entity.ExternalIdentityLink
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		var err error
		links, err = repos.IdentityLinkRepo().ListByAccountID(ctx, accountID)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load identity links")
	}

	if len(links) == 0 {
		return &usecase.RegistrationDefaults{}, nil
	}

	profile := links[0].Profile
	email := profile.Email
	if email == "" {
		email = profile.VerifiedEmail
	}

	return &usecase.RegistrationDefaults{
		Username: suggestUsername(profile),
		Email:    email,
	}, nil
}

// GetAccount loads an account by ID.
func (srv *provisionerService) GetAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error) {
	var account *entity.Account
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		var err error
		account, err = repos.AccountRepo().FindByID(ctx, accountID)

		return err
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, domainerrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load account")
	}

	return account, nil
}
