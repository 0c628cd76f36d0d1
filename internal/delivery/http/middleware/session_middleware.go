package middleware

import (
	"log/slog"
	"net/http"

	"idlink/config"
	deliverycontext "idlink/internal/delivery/context"
	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/service"
	"idlink/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const contextKeyAccount = "session.account"

// SessionMiddleware keeps the signed-in account in a signed cookie.
type SessionMiddleware struct {
	tokens   service.SessionTokenService
	accounts usecase.ProvisionerUsecase
	cfg      config.SessionConfig
	loginURL string
	logger   *slog.Logger
}

// SessionMiddlewareParams holds dependencies for SessionMiddleware, injected by Fx.
type SessionMiddlewareParams struct {
	fx.In

	Tokens      service.SessionTokenService
	Provisioner usecase.ProvisionerUsecase
	Config      *config.Config
	Logger      *slog.Logger
}

// NewSessionMiddleware is the constructor for SessionMiddleware.
func NewSessionMiddleware(params SessionMiddlewareParams) *SessionMiddleware {
	return &SessionMiddleware{
		tokens:   params.Tokens,
		accounts: params.Provisioner,
		cfg:      params.Config.Session,
		loginURL: params.Config.URLs.Login,
		logger:   params.Logger,
	}
}

// Load resolves the session cookie to an account. Invalid or stale cookies are dropped and the
// request continues anonymously.
func (m *SessionMiddleware) Load(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(m.cfg.CookieName)
		if err != nil || cookie.Value == "" {
			return next(c)
		}

		ctx := c.Request().Context()
		logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger)

		claims, err := m.tokens.Parse(cookie.Value)
		if err != nil {
			logger.Debug("Discarding invalid session cookie", slog.Any("error", err))
			m.Clear(c)

			return next(c)
		}

		account, err := m.accounts.GetAccount(ctx, claims.AccountID)
		if errors.Is(err, domainerrors.ErrAccountNotFound) {
			// Retired placeholders end up here after their identity was associated elsewhere.
			m.Clear(c)

			return next(c)
		}
		if err != nil {
			return errors.WithStack(err)
		}

		m.attach(c, account)

		return next(c)
	}
}

// RequireAccount redirects to the login page unless a session exists, placeholder or not.
func (m *SessionMiddleware) RequireAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentAccount(c) == nil {
			return c.Redirect(http.StatusFound, m.loginURL)
		}

		return next(c)
	}
}

// RequireActive redirects to the login page unless the session belongs to a finalized account.
func (m *SessionMiddleware) RequireActive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAuthenticatedAndActive(c) {
			return c.Redirect(http.StatusFound, m.loginURL)
		}

		return next(c)
	}
}

// Establish signs the account in by issuing a fresh session cookie.
func (m *SessionMiddleware) Establish(c echo.Context, account *entity.Account) error {
	token, expiresAt, err := m.tokens.Issue(account.ID)
	if err != nil {
		return errors.Wrap(err, "failed to issue session")
	}

	c.SetCookie(&http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.attach(c, account)

	return nil
}

// Clear signs the browser out.
func (m *SessionMiddleware) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(contextKeyAccount, nil)
}

func (m *SessionMiddleware) attach(c echo.Context, account *entity.Account) {
	c.Set(contextKeyAccount, account)
	deliverycontext.SetAccountID(c, account.ID.String())

	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger).With(slog.String("account_id", account.ID.String()))
	c.SetRequest(c.Request().WithContext(deliverycontext.WithLogger(ctx, logger)))
}

// CurrentAccount returns the signed-in account, or nil.
func CurrentAccount(c echo.Context) *entity.Account {
	account, _ := c.Get(contextKeyAccount).(*entity.Account)

	return account
}

// IsAuthenticatedAndActive reports whether a finalized account is signed in.
func IsAuthenticatedAndActive(c echo.Context) bool {
	return CurrentAccount(c).IsActive()
}
