package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables
type Config struct {
	Env      string       `mapstructure:"env"`       // current application environment (local, production)
	LogLevel string       `mapstructure:"log_level"` // debug, info, warn, error
	Client   ClientConfig `mapstructure:"client"`    // learner-side settings
	Server   ServerConfig `mapstructure:"server"`    // identity and remote progress server settings
}

// ClientConfig configures the offline-capable learner side
type ClientConfig struct {
	DataPath       string        `mapstructure:"data_path"`       // local SQLite file holding the progress record
	ServerURL      string        `mapstructure:"server_url"`      // base URL of the remote store; empty means local-only
	CatalogPath    string        `mapstructure:"catalog_path"`    // YAML content catalog
	PushDelay      time.Duration `mapstructure:"push_delay"`      // quiet period before a remote push
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // timeout for a single remote call
}

// ServerConfig configures the reference identity and progress server
type ServerConfig struct {
	Port            string         `mapstructure:"port"`
	Database        DatabaseConfig `mapstructure:"database"`
	TokenSecret     string         `mapstructure:"-"`                 // HMAC secret loaded from environment
	TokenTTL        time.Duration  `mapstructure:"token_ttl"`         // zero means tokens never expire
	ClaimRateLimit  int            `mapstructure:"claim_rate_limit"`  // claims allowed per window per client
	ClaimRateWindow time.Duration  `mapstructure:"claim_rate_window"` // rate limit window
	BlockedWordsURL string         `mapstructure:"blocked_words_url"` // word list rejected in usernames; empty disables
	CleanupInterval time.Duration  `mapstructure:"cleanup_interval"`  // how often idle rate limit entries are dropped
	Redis           RedisConfig    `mapstructure:"redis"`
}

// DatabaseConfig selects the remote store backend
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres, mysql
	Path string `mapstructure:"path"` // SQLite file
	URL  string `mapstructure:"-"`    // connection string loaded from environment
}

// RedisConfig configures the optional read cache in front of the remote store
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"-"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from an optional YAML file, a .env file and environment variables.
// An empty path searches ./config/config.yaml.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix("STUDYTRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("token_secret", "STUDYTRAIL_TOKEN_SECRET")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("env", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Sensitive values come from the environment only
	cfg.Server.TokenSecret = v.GetString("token_secret")
	cfg.Server.Database.URL = v.GetString("database_url")
	cfg.Server.Redis.Password = v.GetString("redis_password")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")

	v.SetDefault("client.data_path", "./studytrail.db")
	v.SetDefault("client.server_url", "")
	v.SetDefault("client.catalog_path", "./config/catalog.yaml")
	v.SetDefault("client.push_delay", "2s")
	v.SetDefault("client.request_timeout", "10s")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.database.type", "sqlite")
	v.SetDefault("server.database.path", "./studytrail-server.db")
	v.SetDefault("server.token_ttl", "0s")
	v.SetDefault("server.claim_rate_limit", 10)
	v.SetDefault("server.claim_rate_window", "1m")
	v.SetDefault("server.blocked_words_url", "")
	v.SetDefault("server.cleanup_interval", "5m")
	v.SetDefault("server.redis.enabled", false)
	v.SetDefault("server.redis.addr", "localhost:6379")
	v.SetDefault("server.redis.db", 0)
	v.SetDefault("server.redis.ttl", "5m")
}

// RequireServerSecrets checks the values the server cannot start without
func (c *Config) RequireServerSecrets() error {
	if c.Server.TokenSecret == "" {
		return fmt.Errorf("%w: STUDYTRAIL_TOKEN_SECRET", ErrMissingEnvironmentVariables)
	}
	switch strings.ToLower(c.Server.Database.Type) {
	case "postgres", "postgresql", "mysql":
		if c.Server.Database.URL == "" {
			return fmt.Errorf("%w: DATABASE_URL", ErrMissingEnvironmentVariables)
		}
	}
	return nil
}

// LocalOnly reports whether the client has no remote store configured
func (c ClientConfig) LocalOnly() bool {
	return strings.TrimSpace(c.ServerURL) == ""
}
