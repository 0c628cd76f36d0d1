// Package rpx verifies sign-in tokens against the RPX (Janrain Engage) auth_info API.
package rpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"idlink/config"
	"idlink/internal/domain/constants"
	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	authInfoPath     = "/api/v2/auth_info"
	maxResponseBytes = 1 << 20
)

// authInfoResponse is the JSON document returned by auth_info.
type authInfoResponse struct {
	Stat    string `json:"stat"`
	Profile struct {
		Identifier        string `json:"identifier"`
		ProviderName      string `json:"providerName"`
		PreferredUsername string `json:"preferredUsername"`
		DisplayName       string `json:"displayName"`
		Email             string `json:"email"`
		VerifiedEmail     string `json:"verifiedEmail"`
		Photo             string `json:"photo"`
	} `json:"profile"`
	Err *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"err"`
}

// Client calls auth_info with the configured API key.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client from the identity.rpx configuration.
func NewClient(cfg config.RPXConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("rpx api key must be provided")
	}

	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + authInfoPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// Name returns the provider kind.
func (c *Client) Name() string {
	return constants.IdentityProviderRPX
}

// VerifyToken exchanges the one-time token posted by the RPX widget for the signed-in profile.
func (c *Client) VerifyToken(ctx context.Context, token string) (*service.VerifiedIdentity, error) {
	form := url.Values{}
	form.Set("apiKey", c.apiKey)
	form.Set("token", token)
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, err.Error())
	}

	c.logger.DebugContext(ctx, "rpx auth_info answered",
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(domainerrors.ErrVerificationFailed, "auth_info returned status %d", resp.StatusCode)
	}

	var payload authInfoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, "auth_info returned malformed json")
	}

	if payload.Stat != "ok" {
		if payload.Err != nil {
			return nil, errors.Wrapf(domainerrors.ErrVerificationFailed, "auth_info error %d: %s", payload.Err.Code, payload.Err.Msg)
		}

		return nil, errors.Wrapf(domainerrors.ErrVerificationFailed, "auth_info stat %q", payload.Stat)
	}

	if payload.Profile.Identifier == "" {
		return nil, errors.Wrap(domainerrors.ErrVerificationFailed, "auth_info profile has no identifier")
	}

	return &service.VerifiedIdentity{
		Identifier: payload.Profile.Identifier,
		Provider:   payload.Profile.ProviderName,
		Profile: entity.Profile{
			PreferredUsername: payload.Profile.PreferredUsername,
			DisplayName:       payload.Profile.DisplayName,
			Email:             payload.Profile.Email,
			VerifiedEmail:     payload.Profile.VerifiedEmail,
			PhotoURL:          payload.Profile.Photo,
		},
	}, nil
}
