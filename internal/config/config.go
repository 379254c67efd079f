package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/goliatone/go-account-cache/cache"
)

// EnvPrefix prefixes every environment override, e.g. ACCOUNT_CACHE_ADDR.
const EnvPrefix = "ACCOUNT"

// Config stores all the configuration of accountd.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig stores HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig stores the SQL connection.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig stores token settings.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Issuer   string        `mapstructure:"issuer"`
}

// CacheConfig stores the cache backend settings. TTL is in seconds.
type CacheConfig struct {
	Backend          string        `mapstructure:"backend"`
	Addr             string        `mapstructure:"addr"`
	Password         string        `mapstructure:"password"`
	DB               int           `mapstructure:"db"`
	Namespace        string        `mapstructure:"namespace"`
	TTL              int           `mapstructure:"ttl"`
	MaxEntries       int           `mapstructure:"max_entries"`
	Codec            string        `mapstructure:"codec"`
	SingleFlight     bool          `mapstructure:"single_flight"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	def := cache.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:accountd.db?_foreign_keys=on")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "accountd")

	v.SetDefault("cache.backend", string(def.Backend))
	v.SetDefault("cache.addr", def.Addr)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", def.DB)
	v.SetDefault("cache.namespace", def.Namespace)
	v.SetDefault("cache.ttl", int(def.DefaultTTL/time.Second))
	v.SetDefault("cache.max_entries", def.MaxEntries)
	v.SetDefault("cache.codec", def.Codec)
	v.SetDefault("cache.single_flight", false)
	v.SetDefault("cache.operation_timeout", def.OperationTimeout.String())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads defaults, then the optional file at path, then ACCOUNT_*
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks the sections accountd cannot start without.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Addr, validation.Required),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite3", "postgres")),
		validation.Field(&c.Database.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.Secret, validation.Required),
		validation.Field(&c.Auth.TokenTTL, validation.Required),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.TTL, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return c.CacheConfig().Validate()
}

// CacheConfig maps the cache section onto cache.Config.
func (c *Config) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Backend = cache.Backend(c.Cache.Backend)
	cfg.Addr = c.Cache.Addr
	cfg.Password = c.Cache.Password
	cfg.DB = c.Cache.DB
	cfg.Namespace = c.Cache.Namespace
	cfg.DefaultTTL = time.Duration(c.Cache.TTL) * time.Second
	cfg.MaxEntries = c.Cache.MaxEntries
	cfg.Codec = c.Cache.Codec
	cfg.SingleFlight = c.Cache.SingleFlight
	cfg.OperationTimeout = c.Cache.OperationTimeout
	return cfg
}
