package impl

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"idlink/config"
	deliverycontext "idlink/internal/delivery/context"
	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// reconcileService implements the ReconcileUsecase interface.
type reconcileService struct {
	verifier    usecase.TokenVerifier
	loginURL    string
	registerURL string
	postLogin   string
	logger      *slog.Logger
}

// ReconcileServiceParams holds dependencies for ReconcileService, injected by Fx.
type ReconcileServiceParams struct {
	fx.In

	Verifier usecase.TokenVerifier
	Config   *config.Config
	Logger   *slog.Logger
}

// NewReconcileService is the constructor for reconcileService.
func NewReconcileService(params ReconcileServiceParams) usecase.ReconcileUsecase {
	return &reconcileService{
		verifier:    params.Verifier,
		loginURL:    params.Config.URLs.Login,
		registerURL: params.Config.URLs.Register,
		postLogin:   params.Config.URLs.PostLogin,
		logger:      params.Logger,
	}
}

func (srv *reconcileService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Reconcile resolves the callback token to a local account and decides the next step:
// finalized accounts sign in, clean placeholders go to registration, anything else is rejected.
func (srv *reconcileService) Reconcile(ctx context.Context, input usecase.ReconcileInput) (*usecase.ReconcileOutcome, error) {
	next := input.Next
	if strings.TrimSpace(next) == "" {
		next = srv.postLogin
	}

	if input.Token == "" {
		return srv.reject(next, domainerrors.ErrVerificationFailed.WrapMessage("no token in callback")), nil
	}

	verified, err := srv.verifier.Verify(ctx, input.Token)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrVerificationFailed) {
			srv.log(ctx).Error("Failed to resolve verified identity", slog.Any("error", err))
		}

		return srv.reject(next, err), nil
	}
	if verified == nil || verified.Account == nil {
		return srv.reject(next, domainerrors.ErrVerificationFailed.WrapMessage("no account for verified identity")), nil
	}

	account := verified.Account
	if account.IsActive() {
		srv.log(ctx).Info("Signed in", slog.Any("accountID", account.ID))

		return &usecase.ReconcileOutcome{
			Kind:        usecase.ReconcileLoggedIn,
			Account:     account,
			Next:        next,
			RedirectURL: next,
		}, nil
	}

	if reason := placeholderInconsistency(account, verified.Link); reason != nil {
		srv.log(ctx).Error("Placeholder account in inconsistent state",
			slog.Any("accountID", account.ID),
			slog.Any("error", reason),
		)

		return srv.reject(next, reason), nil
	}

	return &usecase.ReconcileOutcome{
		Kind:        usecase.ReconcileNeedsRegistration,
		Account:     account,
		Next:        next,
		RedirectURL: withNext(srv.registerURL, next),
	}, nil
}

// placeholderInconsistency returns why a provisional account cannot proceed to registration.
func placeholderInconsistency(account *entity.Account, link *entity.ExternalIdentityLink) error {
	switch {
	case link == nil:
		return domainerrors.ErrDataInconsistency.WrapMessage("placeholder has no identity link")
	case link.AccountID != account.ID:
		return domainerrors.ErrDataInconsistency.WrapMessage("identity link belongs to another account")
	case link.IsAssociated:
		return domainerrors.ErrDataInconsistency.WrapMessage("placeholder link is already associated")
	default:
		return nil
	}
}

func (srv *reconcileService) reject(next string, reason error) *usecase.ReconcileOutcome {
	return &usecase.ReconcileOutcome{
		Kind:        usecase.ReconcileRejected,
		Next:        next,
		RedirectURL: withNext(srv.loginURL, next),
		Message:     usecase.MsgSignInError,
		Reason:      reason,
	}
}

// withNext appends next as a query parameter, keeping any query the base URL already has.
func withNext(base, next string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + url.Values{"next": {next}}.Encode()
	}

	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()

	return u.String()
}
