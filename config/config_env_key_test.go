package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"session": map[string]any{
			"cookieName": "idlink_session",
		},
		"identity": map[string]any{
			"rpx": map[string]any{
				"apiKey": "",
			},
		},
		"pubsub": map[string]any{
			"topicId": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "SESSION_COOKIENAME", want: "session.cookieName"},
		{envKey: "IDENTITY_RPX_APIKEY", want: "identity.rpx.apiKey"},
		{envKey: "PUBSUB_TOPICID", want: "pubsub.topicId"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}

func TestLoadWithEnv_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
storage:
  driver: memory
session:
  secret: from-file
  cookieName: sid
identity:
  provider: rpx
  rpx:
    apiKey: file-key
    timeout: 3s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), content, 0o600))

	t.Chdir(dir)
	t.Setenv("IDENTITY_RPX_APIKEY", "env-key")

	cfg, err := LoadWithEnv[Config]("test")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, "env-key", cfg.Identity.RPX.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Identity.RPX.Timeout)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadWithEnv[Config]("absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml not found")
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, defaultSessionCookieName, cfg.Session.CookieName)
	assert.Equal(t, defaultSessionTTL, cfg.Session.TTL)
	assert.Equal(t, "rpx", cfg.Identity.Provider)
	assert.Equal(t, defaultRPXBaseURL, cfg.Identity.RPX.BaseURL)
	assert.Equal(t, "/accounts/profile", cfg.URLs.PostLogin)
	assert.Equal(t, "/login", cfg.URLs.Login)
	assert.Equal(t, defaultUsernameMaxLength, cfg.Username.MaxLength)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Session.Secret = "s3cret"
		cfg.Storage.Driver = "memory"
		cfg.Identity.Provider = "rpx"
		cfg.Identity.RPX.APIKey = "key"

		return cfg
	}

	t.Run("valid memory + rpx", func(t *testing.T) {
		assert.NoError(t, Validate(valid()))
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := valid()
		cfg.Session.Secret = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("postgres without connection", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Driver = "postgres"
		assert.Error(t, Validate(cfg))
	})

	t.Run("google without client id", func(t *testing.T) {
		cfg := valid()
		cfg.Identity.Provider = "google"
		assert.Error(t, Validate(cfg))
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.Identity.Provider = "myspace"
		assert.Error(t, Validate(cfg))
	})
}
