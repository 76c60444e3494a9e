// Package config loads actionstore settings from an optional YAML file,
// ACTIONSTORE_* environment variables and built-in defaults, in that order
// of precedence from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/actionstore/internal/logging"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// EnvPrefix namespaces environment overrides: log.level is read from
// ACTIONSTORE_LOG_LEVEL.
const EnvPrefix = "actionstore"

// Config is the full process configuration, one section per concern.
type Config struct {
	Backend  string         `mapstructure:"backend"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// LogConfig selects the log threshold and sink.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json | none
}

// EngineConfig tunes the engine. Concurrency bounds parallel
// serialize/deserialize work within one batch.
type EngineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig configures the Postgres pool. MaxConns 0 keeps the pgx
// default.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	ConnectAttempts uint          `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
}

// RedisConfig configures the Redis client and key namespace.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	Prefix          string        `mapstructure:"prefix"`
	ConnectAttempts uint          `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("log.level", logging.DefaultLevel.String())
	v.SetDefault("log.format", "console")
	v.SetDefault("engine.concurrency", 8)
	v.SetDefault("sqlite.path", "actionstore.db")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 0)
	v.SetDefault("postgres.connect_attempts", 5)
	v.SetDefault("postgres.connect_delay", "200ms")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "actionstore")
	v.SetDefault("redis.connect_attempts", 5)
	v.SetDefault("redis.connect_delay", "200ms")
}

// Load reads configuration. With an empty path it looks for an optional
// actionstore.yaml in the working directory; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("actionstore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json", "none":
	default:
		return fmt.Errorf("config: log.format must be console, json or none, got %q", c.Log.Format)
	}
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("config: engine.concurrency must be positive")
	}
	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("config: sqlite.path is required")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres.dsn is required")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
	}
	return nil
}

// LogLevel returns the parsed log.level. Call after Validate.
func (c *Config) LogLevel() logging.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.DefaultLevel
	}
	return level
}

// LogSink returns the sink selected by log.format.
func (c *Config) LogSink() logging.Sink {
	switch c.Log.Format {
	case "json":
		return logging.JSONSink()
	case "none":
		return nil
	}
	return logging.ConsoleSink()
}
