package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Shortener behaviour
	Shortener ShortenerConfig `mapstructure:"shortener"`

	// Expiration sweeper
	Sweeper SweeperConfig `mapstructure:"sweeper"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	NotFoundURL string `mapstructure:"not_found_url"`
	// Requests per minute per client IP; zero disables the Redis limiter.
	IPRateLimit int `mapstructure:"ip_rate_limit"`
	// Header carrying the client IP behind a proxy, e.g. X-Forwarded-For.
	ProxyHeader     string        `mapstructure:"proxy_header"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type ShortenerConfig struct {
	// Scheme + host used to build short URLs, e.g. https://go.example.com
	BaseURL          string `mapstructure:"base_url"`
	BlockedDomains   string `mapstructure:"blocked_domains"`
	RateLimitPerHour int    `mapstructure:"rate_limit_per_hour"`
	// none | truncate | hash
	IPPolicy      string `mapstructure:"ip_policy"`
	IPHashSecret  string `mapstructure:"ip_hash_secret"`
	CountryHeader string `mapstructure:"country_header"`
	BloomCapacity uint   `mapstructure:"bloom_capacity"`
}

type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ErrRateLimitUnset is returned when no usable creation limit is configured.
var ErrRateLimitUnset = errors.New("shortener.rate_limit_per_hour must be at least 1")

// CreationLimit reports the per-principal hourly creation limit.
func (c ShortenerConfig) CreationLimit() (int, error) {
	if c.RateLimitPerHour < 1 {
		return 0, ErrRateLimitUnset
	}
	return c.RateLimitPerHour, nil
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.not_found_url", "/s/not-found")
	v.SetDefault("server.ip_rate_limit", 120)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("nats.enabled", true)

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("shortener.base_url", "http://localhost:8080")
	v.SetDefault("shortener.rate_limit_per_hour", 100)
	v.SetDefault("shortener.ip_policy", "truncate")
	v.SetDefault("shortener.country_header", "CF-IPCountry")
	v.SetDefault("shortener.bloom_capacity", 1_000_000)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", 24*time.Hour)

	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "HTTP_ADDR")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Shortener
	v.BindEnv("shortener.base_url", "SHORT_BASE_URL")
	v.BindEnv("shortener.blocked_domains", "BLOCKED_DOMAINS")
	v.BindEnv("shortener.rate_limit_per_hour", "RATE_LIMIT_PER_HOUR")
	v.BindEnv("shortener.ip_hash_secret", "IP_HASH_SECRET")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")
}
