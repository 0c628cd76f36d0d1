// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"idlink/internal/delivery/http/middleware"
	"idlink/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler         *handler.AuthHandler
	RegistrationHandler *handler.RegistrationHandler
	AssociationHandler  *handler.AssociationHandler
	SessionMiddleware   *middleware.SessionMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler         *handler.AuthHandler
	registrationHandler *handler.RegistrationHandler
	associationHandler  *handler.AssociationHandler
	session             *middleware.SessionMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:         params.AuthHandler,
		registrationHandler: params.RegistrationHandler,
		associationHandler:  params.AssociationHandler,
		session:             params.SessionMiddleware,
	}
}

// RegisterRoutes sets up all the routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	// Everything else may read the session cookie.
	site := e.Group("", r.session.Load)

	site.GET("/login", r.authHandler.LoginPage)
	site.POST("/logout", r.authHandler.Logout)
	site.POST("/rpx/callback", r.authHandler.Callback)

	// Placeholders hold a session too; they need it to finish registration.
	registerGroup := site.Group("/register", r.session.RequireAccount)
	{
		registerGroup.GET("", r.registrationHandler.Form)
		registerGroup.POST("", r.registrationHandler.Submit)
	}

	// Association requires a finalized account.
	site.POST("/rpx/associate-callback", r.associationHandler.Callback, r.session.RequireActive)
	associateGroup := site.Group("/associate", r.session.RequireActive)
	{
		associateGroup.GET("", r.associationHandler.Page)
		associateGroup.POST("/delete/:linkId", r.associationHandler.Delete)
	}
}
