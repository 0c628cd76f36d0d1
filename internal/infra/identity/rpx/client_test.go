package rpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"idlink/config"
	domainerrors "idlink/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.RPXConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
		Timeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return client
}

func TestClient_VerifyToken_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/auth_info", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.PostForm.Get("apiKey"))
		assert.Equal(t, "tok-123", r.PostForm.Get("token"))
		assert.Equal(t, "json", r.PostForm.Get("format"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"stat": "ok",
			"profile": {
				"identifier": "https://www.google.com/profiles/alice",
				"providerName": "Google",
				"preferredUsername": "alice!",
				"displayName": "Alice A",
				"email": "alice@example.com",
				"verifiedEmail": "alice@example.com"
			}
		}`)
	})

	identity, err := client.VerifyToken(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/profiles/alice", identity.Identifier)
	assert.Equal(t, "Google", identity.Provider)
	assert.Equal(t, "alice!", identity.Profile.PreferredUsername)
	assert.Equal(t, "Alice A", identity.Profile.DisplayName)
	assert.Equal(t, "alice@example.com", identity.Profile.VerifiedEmail)
	assert.Equal(t, "rpx", client.Name())
}

func TestClient_VerifyToken_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "stat fail", status: http.StatusOK, body: `{"stat":"fail","err":{"code":2,"msg":"Data not found"}}`},
		{name: "missing identifier", status: http.StatusOK, body: `{"stat":"ok","profile":{"providerName":"Google"}}`},
		{name: "malformed json", status: http.StatusOK, body: `<html>`},
		{name: "server error", status: http.StatusInternalServerError, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			identity, err := client.VerifyToken(context.Background(), "tok")
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, domainerrors.ErrVerificationFailed)
		})
	}
}

func TestClient_VerifyToken_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewClient(config.RPXConfig{APIKey: "k", BaseURL: server.URL, Timeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = client.VerifyToken(context.Background(), "tok")
	assert.ErrorIs(t, err, domainerrors.ErrVerificationFailed)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(config.RPXConfig{}, slog.Default())
	assert.Error(t, err)
}
