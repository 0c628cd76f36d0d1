package handler

import (
	"net/http"
	"time"

	"idlink/config"
	"idlink/internal/delivery/http/flash"
	"idlink/internal/delivery/http/middleware"
	"idlink/internal/delivery/http/response"
	"idlink/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// LinkView is one identity shown on the association page.
type LinkView struct {
	ID          uuid.UUID `json:"id"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"displayName,omitempty"`
	Email       string    `json:"email,omitempty"`
	PhotoURL    string    `json:"photo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AssociationPage lists the identities attached to the signed-in account.
type AssociationPage struct {
	Username     string          `json:"username"`
	Links        []LinkView      `json:"links"`
	NumLogins    int             `json:"numLogins"`
	CallbackPath string          `json:"callbackPath"`
	Next         string          `json:"next"`
	Messages     []flash.Message `json:"messages,omitempty"`
}

// AssociationHandler serves the association page and its callbacks.
type AssociationHandler struct {
	association  usecase.AssociationUsecase
	flash        *flash.Store
	associateURL string
}

// AssociationHandlerParams holds dependencies for AssociationHandler, injected by Fx.
type AssociationHandlerParams struct {
	fx.In

	Association usecase.AssociationUsecase
	Flash       *flash.Store
	Config      *config.Config
}

// NewAssociationHandler is the constructor for AssociationHandler, injected by Fx.
func NewAssociationHandler(params AssociationHandlerParams) *AssociationHandler {
	return &AssociationHandler{
		association:  params.Association,
		flash:        params.Flash,
		associateURL: params.Config.URLs.Associate,
	}
}

// Page handles GET /associate.
func (h *AssociationHandler) Page(c echo.Context) error {
	account := middleware.CurrentAccount(c)

	links, err := h.association.ListLinks(c.Request().Context(), account.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	views := make([]LinkView, 0, len(links))
	for _, link := range links {
		views = append(views, LinkView{
			ID:          link.ID,
			Provider:    link.Provider,
			DisplayName: link.Profile.DisplayName,
			Email:       link.Profile.ContactEmail(),
			PhotoURL:    link.Profile.PhotoURL,
			CreatedAt:   link.CreatedAt,
		})
	}

	return response.Success(c, http.StatusOK, AssociationPage{
		Username:     account.DisplayUsername(),
		Links:        views,
		NumLogins:    len(views),
		CallbackPath: "/rpx/associate-callback",
		Next:         h.associateURL,
		Messages:     h.flash.Pop(c),
	}, "")
}

// Callback handles POST /rpx/associate-callback. The browser always goes to next with a message.
func (h *AssociationHandler) Callback(c echo.Context) error {
	var form CallbackForm
	if err := c.Bind(&form); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid callback form")
	}

	outcome, err := h.association.Associate(c.Request().Context(), usecase.AssociateInput{
		AccountID: middleware.CurrentAccount(c).ID,
		Token:     form.Token,
		Next:      localNext(form.Next),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if outcome.Associated {
		h.flash.Success(c, outcome.Message)
	} else {
		h.flash.Error(c, outcome.Message)
	}

	return c.Redirect(http.StatusFound, outcome.Next)
}

// Delete handles POST /associate/delete/:linkId. Refusals are silent; the page is shown again.
func (h *AssociationHandler) Delete(c echo.Context) error {
	linkID, err := uuid.Parse(c.Param("linkId"))
	if err != nil {
		return c.Redirect(http.StatusFound, h.associateURL)
	}

	outcome, err := h.association.RemoveLink(c.Request().Context(), usecase.RemoveLinkInput{
		AccountID: middleware.CurrentAccount(c).ID,
		LinkID:    linkID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if outcome.Removed {
		h.flash.Success(c, outcome.Message)
	}

	return c.Redirect(http.StatusFound, h.associateURL)
}
