// Package config provides configuration management for the editorial workflow service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Blob backends.
const (
	BlobBackendOS     = "os"
	BlobBackendMemory = "memory"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "EDITORIAL"

// Config holds all configuration for the editorial workflow service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Redis contains submission cache settings.
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka contains domain event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Blob contains file blob storage settings.
	Blob BlobConfig `mapstructure:"blob"`
	// Locale contains locale negotiation settings.
	Locale LocaleConfig `mapstructure:"locale"`
	// Auth contains bearer token settings.
	Auth AuthConfig `mapstructure:"auth"`
	// Jobs contains scheduled maintenance job settings.
	Jobs JobsConfig `mapstructure:"jobs"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadSize caps multipart file uploads in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from EDITORIAL_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 50).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// LockTimeout bounds how long a row lock is awaited before the write fails as a conflict.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// RedisConfig holds the submission cache configuration.
type RedisConfig struct {
	// Enabled turns the read-through cache on.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the Redis host:port.
	Addr string `mapstructure:"addr"`
	// Password is loaded from EDITORIAL_REDIS_PASSWORD.
	Password string `mapstructure:"-"`
	// DB is the Redis logical database.
	DB int `mapstructure:"db"`
	// TTL is the expiry of cached submissions.
	TTL time.Duration `mapstructure:"ttl"`
	// KeyPrefix namespaces cache keys.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka publisher settings for domain events.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic domain events are written to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// BlobConfig holds file blob storage settings.
type BlobConfig struct {
	// Backend is "os" or "memory".
	Backend string `mapstructure:"backend"`
	// Root is the directory blobs are written under for the os backend.
	Root string `mapstructure:"root"`
}

// LocaleConfig holds locale settings.
type LocaleConfig struct {
	// Primary is the default locale of every context.
	Primary string `mapstructure:"primary"`
	// Supported lists the locales offered to clients, in preference order.
	Supported []string `mapstructure:"supported"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	// Enabled requires a valid bearer token on API routes.
	Enabled bool `mapstructure:"enabled"`
	// Issuer is the expected "iss" claim; empty accepts any issuer.
	Issuer string `mapstructure:"issuer"`
	// JWTSecret is the HMAC signing key (loaded from EDITORIAL_AUTH_JWT_SECRET).
	JWTSecret string `mapstructure:"-"`
}

// JobsConfig holds scheduled job settings.
type JobsConfig struct {
	// RoundRefreshInterval is how often cached round statuses are recomputed.
	RoundRefreshInterval time.Duration `mapstructure:"round_refresh_interval"`
	// RoundRefreshBatch is the number of rounds read per page.
	RoundRefreshBatch int `mapstructure:"round_refresh_batch"`
	// RoundRefreshRPS throttles round recomputations per second.
	RoundRefreshRPS float64 `mapstructure:"round_refresh_rps"`
	// OverdueGaugeInterval is how often the overdue-assignments gauge is updated.
	OverdueGaugeInterval time.Duration `mapstructure:"overdue_gauge_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/editorial-workflow-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets use mapstructure:"-" and are read from the environment only.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Redis.Password = os.Getenv(EnvPrefix + "_REDIS_PASSWORD")
	cfg.Auth.JWTSecret = os.Getenv(EnvPrefix + "_AUTH_JWT_SECRET")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_upload_size", 64<<20)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "editorial")
	v.SetDefault("database.name", "editorial_workflow")
	// Use EDITORIAL_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("redis.key_prefix", "editorial:submission:")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.editorial_workflow")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Blob defaults
	v.SetDefault("blob.backend", BlobBackendOS)
	v.SetDefault("blob.root", "var/files")

	// Locale defaults
	v.SetDefault("locale.primary", "en")
	v.SetDefault("locale.supported", []string{"en"})

	// Auth defaults
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.issuer", "")

	// Jobs defaults
	v.SetDefault("jobs.round_refresh_interval", "15m")
	v.SetDefault("jobs.round_refresh_batch", 200)
	v.SetDefault("jobs.round_refresh_rps", 50.0)
	v.SetDefault("jobs.overdue_gauge_interval", "5m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "editorial")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Database.HealthCheckPeriod <= 0 {
		return fmt.Errorf("database health_check_period must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when the cache is enabled")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	switch c.Blob.Backend {
	case BlobBackendOS:
		if c.Blob.Root == "" {
			return fmt.Errorf("blob root is required for the os backend")
		}
	case BlobBackendMemory:
	default:
		return fmt.Errorf("invalid blob backend: %s", c.Blob.Backend)
	}

	if c.Locale.Primary == "" {
		return fmt.Errorf("primary locale is required")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but %s_AUTH_JWT_SECRET is not set", EnvPrefix)
	}

	if c.Jobs.RoundRefreshRPS <= 0 {
		return fmt.Errorf("jobs round_refresh_rps must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
