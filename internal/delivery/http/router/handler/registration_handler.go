package handler

import (
	"net/http"

	"idlink/config"
	"idlink/internal/delivery/http/flash"
	"idlink/internal/delivery/http/middleware"
	"idlink/internal/delivery/http/response"
	"idlink/internal/delivery/http/validator"
	"idlink/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// RegisterForm is the username selection form.
type RegisterForm struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"required,email,max=254"`
}

// RegistrationPage pre-populates the registration form.
type RegistrationPage struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Next     string          `json:"next,omitempty"`
	Messages []flash.Message `json:"messages,omitempty"`
}

// RegistrationHandler lets a signed-in placeholder pick its username.
type RegistrationHandler struct {
	provisioner usecase.ProvisionerUsecase
	flash       *flash.Store
	postLogin   string
}

// RegistrationHandlerParams holds dependencies for RegistrationHandler, injected by Fx.
type RegistrationHandlerParams struct {
	fx.In

	Provisioner usecase.ProvisionerUsecase
	Flash       *flash.Store
	Config      *config.Config
}

// NewRegistrationHandler is the constructor for RegistrationHandler, injected by Fx.
func NewRegistrationHandler(params RegistrationHandlerParams) *RegistrationHandler {
	return &RegistrationHandler{
		provisioner: params.Provisioner,
		flash:       params.Flash,
		postLogin:   params.Config.URLs.PostLogin,
	}
}

// Form handles GET /register.
func (h *RegistrationHandler) Form(c echo.Context) error {
	account := middleware.CurrentAccount(c)

	defaults, err := h.provisioner.RegistrationForm(c.Request().Context(), account.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, RegistrationPage{
		Username: defaults.Username,
		Email:    defaults.Email,
		Next:     localNext(c.QueryParam("next")),
		Messages: h.flash.Pop(c),
	}, "")
}

// Submit handles POST /register?next=.
func (h *RegistrationHandler) Submit(c echo.Context) error {
	var form RegisterForm
	if err := c.Bind(&form); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration form")
	}
	if err := c.Validate(&form); err != nil {
		return response.ValidationError(c, validator.FieldErrors(err))
	}

	account := middleware.CurrentAccount(c)
	if _, err := h.provisioner.FinalizeRegistration(c.Request().Context(), usecase.FinalizeInput{
		AccountID: account.ID,
		Username:  form.Username,
		Email:     form.Email,
	}); err != nil {
		return errors.WithStack(err)
	}

	next := localNext(c.QueryParam("next"))
	if next == "" {
		next = h.postLogin
	}

	return c.Redirect(http.StatusFound, next)
}
