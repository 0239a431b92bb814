package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultDriver is the default database driver.
	DefaultDriver = "sqlite"

	// DefaultSQLitePath is the default SQLite database file.
	DefaultSQLitePath = "gamelab.db"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// envPrefix is the prefix for environment variable overrides,
	// e.g. GAMELAB_SERVER_LISTEN.
	envPrefix = "GAMELAB"
)

// Config is the root configuration for the gamelab backend.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Auth          RateLimitTier `yaml:"auth,omitempty" mapstructure:"auth"`
	Authenticated RateLimitTier `yaml:"authenticated,omitempty" mapstructure:"authenticated"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AuthConfig contains authentication and authorization settings.
type AuthConfig struct {
	// AdminUserID is the id of the single account allowed to credit
	// coins to other users.
	AdminUserID uint `yaml:"admin_user_id" mapstructure:"admin_user_id"`

	// SessionTTL bounds the lifetime of issued session tokens. Empty
	// means sessions live until logout or process restart.
	SessionTTL string `yaml:"session_ttl,omitempty" mapstructure:"session_ttl"`

	// ProtectUserList requires authentication for the user listing
	// endpoint. The default (false) keeps the listing public, as a
	// leaderboard.
	ProtectUserList bool `yaml:"protect_user_list" mapstructure:"protect_user_list"`

	// Users are seeded into the database on startup.
	Users []SeedUser `yaml:"users,omitempty" mapstructure:"users"`
}

// SeedUser defines a user provisioned from config.
type SeedUser struct {
	ID       uint   `yaml:"id,omitempty" mapstructure:"id"`
	Name     string `yaml:"name" mapstructure:"name"`
	Password string `yaml:"password" mapstructure:"password"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// Load reads and parses a configuration file from the given path.
// Environment variables prefixed with GAMELAB_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Auth.AdminUserID == 0 {
		return fmt.Errorf("auth.admin_user_id is required")
	}

	if _, err := c.Auth.SessionTTLDuration(); err != nil {
		return err
	}

	for i, u := range c.Auth.Users {
		if u.Name == "" {
			return fmt.Errorf("auth.users[%d]: name is required", i)
		}

		if u.Password == "" {
			return fmt.Errorf("auth.users[%d] %q: password is required", i, u.Name)
		}
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Auth.RequestsPerMinute <= 0 {
			return fmt.Errorf("server.rate_limit.auth.requests_per_minute must be positive")
		}

		if c.Server.RateLimit.Authenticated.RequestsPerMinute <= 0 {
			return fmt.Errorf("server.rate_limit.authenticated.requests_per_minute must be positive")
		}
	}

	return nil
}

// SessionTTLDuration parses the configured session TTL. A zero duration
// means sessions never expire.
func (a *AuthConfig) SessionTTLDuration() (time.Duration, error) {
	if a.SessionTTL == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(a.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("parsing auth.session_ttl: %w", err)
	}

	if d < 0 {
		return 0, fmt.Errorf("auth.session_ttl must not be negative")
	}

	return d, nil
}
