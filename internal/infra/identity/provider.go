// Package identity selects the external identity provider configured for the deployment.
package identity

import (
	"log/slog"

	"idlink/config"
	"idlink/internal/domain/constants"
	"idlink/internal/domain/service"
	"idlink/internal/infra/identity/google"
	"idlink/internal/infra/identity/rpx"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// ProviderParams holds dependencies for the IdentityProvider, injected by Fx
type ProviderParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewIdentityProvider returns the provider named by identity.provider.
func NewIdentityProvider(params ProviderParams) (service.IdentityProvider, error) {
	cfg := params.Config.Identity

	switch cfg.Provider {
	case constants.IdentityProviderRPX:
		params.Logger.Info("Using RPX identity provider", slog.String("base_url", cfg.RPX.BaseURL))

		return rpx.NewClient(cfg.RPX, params.Logger)
	case constants.IdentityProviderGoogle:
		params.Logger.Info("Using Google identity provider")

		return google.NewProvider(cfg.Google, params.Logger)
	default:
		return nil, errors.Errorf("unknown identity provider: %s", cfg.Provider)
	}
}
