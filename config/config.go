package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"idlink/internal/domain/constants"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath              = "."
	defaultSessionCookieName = "idlink_session"
	defaultSessionTTL        = 14 * 24 * time.Hour
	defaultFlashCookieName   = "idlink_flash"
	defaultUsernameMaxLength = 30
	defaultRPXBaseURL        = "https://rpxnow.com"
	defaultRPXTimeout        = 10 * time.Second
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Storage selects the identity record store.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Session SessionConfig `json:"session" yaml:"session"`

	// Identity configures the external identity provider used to verify sign-in tokens.
	Identity IdentityConfig `json:"identity" yaml:"identity"`

	URLs URLConfig `json:"urls" yaml:"urls"`

	Username UsernameConfig `json:"username" yaml:"username"`

	// PubSub configuration for identity event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// StorageConfig chooses between "postgres" and "memory".
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	// AutoMigrate creates the accounts and identity_links tables on startup (postgres only).
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
}

// SessionConfig defines the signed session cookie.
type SessionConfig struct {
	Secret          string        `json:"secret" yaml:"secret"`
	CookieName      string        `json:"cookieName" yaml:"cookieName"`
	FlashCookieName string        `json:"flashCookieName" yaml:"flashCookieName"`
	TTL             time.Duration `json:"ttl" yaml:"ttl"`
	Secure          bool          `json:"secure" yaml:"secure"`
}

// IdentityConfig defines which provider verifies sign-in tokens.
type IdentityConfig struct {
	// Provider type: "rpx" for RPX auth_info or "google" for Google ID tokens
	Provider string             `json:"provider" yaml:"provider"`
	RPX      RPXConfig          `json:"rpx" yaml:"rpx"`
	Google   *GoogleOAuthConfig `json:"google" yaml:"google"`
}

// RPXConfig defines the RPX auth_info client.
type RPXConfig struct {
	APIKey  string        `json:"apiKey" yaml:"apiKey"`
	BaseURL string        `json:"baseUrl" yaml:"baseUrl"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type GoogleOAuthConfig struct {
	ClientID string `json:"clientId" yaml:"clientId"`
}

// URLConfig holds the redirect targets used by the sign-in flows.
type URLConfig struct {
	Login     string `json:"login" yaml:"login"`
	Register  string `json:"register" yaml:"register"`
	Associate string `json:"associate" yaml:"associate"`
	PostLogin string `json:"postLogin" yaml:"postLogin"`
	// LoginPageDefault is the "next" shown on the sign-in page when none is given.
	LoginPageDefault string `json:"loginPageDefault" yaml:"loginPageDefault"`
}

// UsernameConfig constrains usernames chosen at registration.
type UsernameConfig struct {
	MaxLength int `json:"maxLength" yaml:"maxLength"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	configFile, found := findConfigFile(currEnv, searchPaths)
	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Example: SESSION_COOKIENAME -> session.cookieName (not session.cookiename)
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func findConfigFile(currEnv string, searchPaths []string) (string, bool) {
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if cfg.Postgres != nil {
		// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills in values the service cannot run without.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = constants.StorageDriverPostgres
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = defaultSessionCookieName
	}
	if cfg.Session.FlashCookieName == "" {
		cfg.Session.FlashCookieName = defaultFlashCookieName
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = defaultSessionTTL
	}
	if cfg.Identity.Provider == "" {
		cfg.Identity.Provider = constants.IdentityProviderRPX
	}
	if cfg.Identity.RPX.BaseURL == "" {
		cfg.Identity.RPX.BaseURL = defaultRPXBaseURL
	}
	if cfg.Identity.RPX.Timeout <= 0 {
		cfg.Identity.RPX.Timeout = defaultRPXTimeout
	}
	if cfg.URLs.Login == "" {
		cfg.URLs.Login = "/login"
	}
	if cfg.URLs.Register == "" {
		cfg.URLs.Register = "/register"
	}
	if cfg.URLs.Associate == "" {
		cfg.URLs.Associate = "/associate"
	}
	if cfg.URLs.PostLogin == "" {
		cfg.URLs.PostLogin = "/accounts/profile"
	}
	if cfg.URLs.LoginPageDefault == "" {
		cfg.URLs.LoginPageDefault = "/accounts/profile"
	}
	if cfg.Username.MaxLength <= 0 {
		cfg.Username.MaxLength = defaultUsernameMaxLength
	}
}

// Validate rejects configurations that would fail at the first request.
func Validate(cfg *Config) error {
	if cfg.Session.Secret == "" {
		return errors.New("session secret must be provided")
	}

	switch cfg.Storage.Driver {
	case constants.StorageDriverPostgres:
		if cfg.Postgres == nil {
			return errors.New("postgres configuration is required for the postgres storage driver")
		}
	case constants.StorageDriverMemory:
	default:
		return errors.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	switch cfg.Identity.Provider {
	case constants.IdentityProviderRPX:
		if cfg.Identity.RPX.APIKey == "" {
			return errors.New("identity.rpx.apiKey is required for the rpx provider")
		}
	case constants.IdentityProviderGoogle:
		if cfg.Identity.Google == nil || cfg.Identity.Google.ClientID == "" {
			return errors.New("identity.google.clientId is required for the google provider")
		}
	default:
		return errors.Errorf("unknown identity provider: %s", cfg.Identity.Provider)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
