// Package handler contains the HTTP handlers for the identity flows.
package handler

import (
	"log/slog"
	"net/http"

	"idlink/config"
	"idlink/internal/delivery/http/flash"
	"idlink/internal/delivery/http/middleware"
	"idlink/internal/delivery/http/response"
	"idlink/internal/domain/service"
	"idlink/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// CallbackForm is what the identity provider posts back after sign-in.
type CallbackForm struct {
	Token string `form:"token"`
	Next  string `form:"next"`
}

// LoginPage is the model rendered by the sign-in page.
type LoginPage struct {
	Next         string          `json:"next"`
	Provider     string          `json:"provider"`
	CallbackPath string          `json:"callbackPath"`
	Messages     []flash.Message `json:"messages,omitempty"`
}

// AuthHandler serves sign-in, sign-out and the provider callback.
type AuthHandler struct {
	reconcile usecase.ReconcileUsecase
	session   *middleware.SessionMiddleware
	flash     *flash.Store
	provider  service.IdentityProvider
	urls      config.URLConfig
	logger    *slog.Logger
}

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	Reconcile usecase.ReconcileUsecase
	Session   *middleware.SessionMiddleware
	Flash     *flash.Store
	Provider  service.IdentityProvider
	Config    *config.Config
	Logger    *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		reconcile: params.Reconcile,
		session:   params.Session,
		flash:     params.Flash,
		provider:  params.Provider,
		urls:      params.Config.URLs,
		logger:    params.Logger,
	}
}

// Callback handles POST /rpx/callback. Finalized accounts are signed in; new identities are
// signed in as their placeholder and sent to registration; everything else goes back to login.
func (h *AuthHandler) Callback(c echo.Context) error {
	var form CallbackForm
	if err := c.Bind(&form); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid callback form")
	}

	outcome, err := h.reconcile.Reconcile(c.Request().Context(), usecase.ReconcileInput{
		Token: form.Token,
		Next:  localNext(form.Next),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	switch outcome.Kind {
	case usecase.ReconcileLoggedIn, usecase.ReconcileNeedsRegistration:
		if err := h.session.Establish(c, outcome.Account); err != nil {
			return errors.WithStack(err)
		}
	default:
		h.flash.Error(c, outcome.Message)
	}

	return c.Redirect(http.StatusFound, outcome.RedirectURL)
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	next := localNext(c.QueryParam("next"))
	if next == "" {
		next = h.urls.LoginPageDefault
	}

	return response.Success(c, http.StatusOK, LoginPage{
		Next:         next,
		Provider:     h.provider.Name(),
		CallbackPath: "/rpx/callback",
		Messages:     h.flash.Pop(c),
	}, "")
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.Clear(c)

	return c.Redirect(http.StatusFound, h.urls.Login)
}
