package impl

import (
	"context"
	"log/slog"
	"strings"

	"idlink/config"
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

// associationService implements the AssociationUsecase interface.
type associationService struct {
	verifier     usecase.TokenVerifier
	txManager    repository.TransactionManager
	publisher    service.EventPublisher
	associateURL string
	logger       *slog.Logger
}

// AssociationServiceParams holds dependencies for AssociationService, injected by Fx.
type AssociationServiceParams struct {
	fx.In

	Verifier  usecase.TokenVerifier
	TxManager repository.TransactionManager
	Publisher service.EventPublisher
	Config    *config.Config
	Logger    *slog.Logger
}

// NewAssociationService is the constructor for associationService.
func NewAssociationService(params AssociationServiceParams) usecase.AssociationUsecase {
	return &associationService{
		verifier:     params.Verifier,
		txManager:    params.TxManager,
		publisher:    params.Publisher,
		associateURL: params.Config.URLs.Associate,
		logger:       params.Logger,
	}
}

func (srv *associationService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Associate attaches the identity behind the token to the signed-in account. The identity must be
// fresh, i.e. resolve to a placeholder whose link is not associated yet; the placeholder is retired.
func (srv *associationService) Associate(ctx context.Context, input usecase.AssociateInput) (*usecase.AssociateOutcome, error) {
	next := input.Next
	if strings.TrimSpace(next) == "" {
		next = srv.associateURL
	}

	if input.Token == "" {
		return rejectAssociation(next, usecase.MsgAssociateCancelled, domainerrors.ErrVerificationFailed.WrapMessage("no token in callback")), nil
	}

	current, err := srv.loadFinalizedAccount(ctx, input.AccountID)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrAccountNotFound) && !errors.Is(err, domainerrors.ErrAccountNotActive) {
			srv.log(ctx).Error("Failed to load signed-in account",
				slog.Any("accountID", input.AccountID),
				slog.Any("error", err),
			)
		}

		return rejectAssociation(next, usecase.MsgAssociateFailed, err), nil
	}

	verified, err := srv.verifier.Verify(ctx, input.Token)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrVerificationFailed) {
			srv.log(ctx).Error("Failed to resolve verified identity",
				slog.Any("accountID", current.ID),
				slog.Any("error", err),
			)
		}

		return rejectAssociation(next, usecase.MsgAssociateVerifyError, err), nil
	}
	if verified == nil || verified.Account == nil {
		return rejectAssociation(next, usecase.MsgAssociateVerifyError, domainerrors.ErrVerificationFailed.WrapMessage("no account for verified identity")), nil
	}

	if verified.Account.IsActive() {
		srv.log(ctx).Info("Identity already belongs to an account",
			slog.Any("accountID", current.ID),
			slog.Any("ownerID", verified.Account.ID),
		)

		return rejectAssociation(next, usecase.MsgAlreadyAssociated, domainerrors.ErrAlreadyAssociated), nil
	}

	var link *entity.ExternalIdentityLink
	err = srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		var err error
		link, err = srv.repointPlaceholder(ctx, repos, current.ID, verified.Account.ID)

		return err
	})
	if err != nil {
		srv.log(ctx).Error("Association aborted",
			slog.Any("accountID", current.ID),
			slog.Any("placeholderID", verified.Account.ID),
			slog.Any("error", err),
		)

		return rejectAssociation(next, usecase.MsgAssociateFailed, err), nil
	}

	srv.log(ctx).Info("Identity associated",
		slog.Any("accountID", current.ID),
		slog.Any("linkID", link.ID),
		slog.String("provider", link.Provider),
	)

	publishEvent(ctx, srv.publisher, srv.log(ctx), &service.IdentityEvent{
		Type:      service.IdentityEventLinkAssociated,
		AccountID: current.ID.String(),
		LinkID:    link.ID.String(),
		Provider:  link.Provider,
	})

	return &usecase.AssociateOutcome{
		Associated: true,
		Link:       link,
		Next:       next,
		Message:    usecase.MsgAssociated,
	}, nil
}

// repointPlaceholder moves the placeholder's only link onto the target account, then deletes the
// placeholder. Everything is re-read inside the transaction.
func (srv *associationService) repointPlaceholder(
	ctx context.Context,
	repos repository.RepositoryFactory,
	targetID, placeholderID uuid.UUID,
) (*entity.ExternalIdentityLink, error) {
	accountRepo := repos.AccountRepo()
	linkRepo := repos.IdentityLinkRepo()

	target, err := accountRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload account")
	}
	if !target.IsActive() {
		return nil, domainerrors.ErrAccountNotActive
	}

	placeholder, err := accountRepo.FindByID(ctx, placeholderID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, domainerrors.ErrDataInconsistency.WrapMessage("placeholder disappeared")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload placeholder")
	}
	if !placeholder.IsProvisional() {
		return nil, domainerrors.ErrDataInconsistency.WrapMessage("placeholder was finalized concurrently")
	}

	links, err := linkRepo.ListByAccountID(ctx, placeholder.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load placeholder link")
	}
	if len(links) != 1 {
		return nil, domainerrors.ErrDataInconsistency.WrapMessage("placeholder must own exactly one identity link")
	}
	link := links[0]
	if link.IsAssociated {
		return nil, domainerrors.ErrDataInconsistency.WrapMessage("placeholder link is already associated")
	}

	link.AssociateWith(target.ID)
	if err := linkRepo.Update(ctx, link); err != nil {
		return nil, errors.Wrap(err, "failed to repoint identity link")
	}
	if err := accountRepo.Delete(ctx, placeholder.ID); err != nil {
		return nil, errors.Wrap(err, "failed to delete placeholder account")
	}

	return link, nil
}

func (srv *associationService) loadFinalizedAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error) {
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
	if !account.IsActive() {
		return nil, domainerrors.ErrAccountNotActive
	}

	return account, nil
}

func rejectAssociation(next, message string, reason error) *usecase.AssociateOutcome {
	return &usecase.AssociateOutcome{
		Next:    next,
		Message: message,
		Reason:  reason,
	}
}

// RemoveLink deletes one of the account's links unless it is the last one. Refusals are not errors.
func (srv *associationService) RemoveLink(ctx context.Context, input usecase.RemoveLinkInput) (*usecase.RemoveLinkOutcome, error) {
	outcome := &usecase.RemoveLinkOutcome{}

	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		linkRepo := repos.IdentityLinkRepo()

		account, err := repos.AccountRepo().FindByID(ctx, input.AccountID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			outcome.Refused = domainerrors.ErrAccountNotFound

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to load account")
		}
		if !account.IsActive() {
			outcome.Refused = domainerrors.ErrAccountNotActive

			return nil
		}

		count, err := linkRepo.CountByAccountID(ctx, input.AccountID)
		if err != nil {
			return errors.Wrap(err, "failed to count identity links")
		}
		if count <= 1 {
			outcome.Refused = domainerrors.ErrLastIdentity

			return nil
		}

		link, err := linkRepo.FindByIDAndAccountID(ctx, input.LinkID, input.AccountID)
		if errors.Is(err, repository.ErrLinkNotFound) {
			outcome.Refused = domainerrors.ErrLinkNotFound

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to load identity link")
		}

		if err := linkRepo.Delete(ctx, link.ID); err != nil {
			return errors.Wrap(err, "failed to delete identity link")
		}

		outcome.Removed = true
		outcome.Provider = link.Provider
		outcome.Message = usecase.LinkRemovedMessage(link.Provider)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Removed {
		srv.log(ctx).Info("Identity link kept",
			slog.Any("accountID", input.AccountID),
			slog.Any("linkID", input.LinkID),
			slog.Any("reason", outcome.Refused),
		)

		return outcome, nil
	}

	srv.log(ctx).Info("Identity link removed",
		slog.Any("accountID", input.AccountID),
		slog.Any("linkID", input.LinkID),
		slog.String("provider", outcome.Provider),
	)

	publishEvent(ctx, srv.publisher, srv.log(ctx), &service.IdentityEvent{
		Type:      service.IdentityEventLinkRemoved,
		AccountID: input.AccountID.String(),
		LinkID:    input.LinkID.String(),
		Provider:  outcome.Provider,
	})

	return outcome, nil
}

// ListLinks returns the account's links, oldest first.
func (srv *associationService) ListLinks(ctx context.Context, accountID uuid.UUID) ([]*entity.ExternalIdentityLink, error) {
	var links []*entity.ExternalIdentityLink
	err := srv.txManager.Execute(ctx, func(repos repository.RepositoryFactory) error {
		var err error
		links, err = repos.IdentityLinkRepo().ListByAccountID(ctx, accountID)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list identity links")
	}

	return links, nil
}
