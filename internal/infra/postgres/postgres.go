package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/utmlink/config"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultMaxConnLifetime = 5 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultHealthCheck     = time.Minute
)

type durations struct {
	maxConnLifetime   time.Duration
	maxConnIdleTime   time.Duration
	healthCheckPeriod time.Duration
}

// poolSettings parses the pool durations of cfg, applying defaults to empty values.
func poolSettings(cfg config.PostgresConfig) (durations, error) {
	var d durations
	fields := []struct {
		name  string
		raw   string
		def   time.Duration
		field *time.Duration
	}{
		{"max_conn_lifetime", cfg.MaxConnLifetime, defaultMaxConnLifetime, &d.maxConnLifetime},
		{"max_conn_idle_time", cfg.MaxConnIdleTime, defaultMaxConnIdleTime, &d.maxConnIdleTime},
		{"health_check_period", cfg.HealthCheckPeriod, defaultHealthCheck, &d.healthCheckPeriod},
	}
	for _, f := range fields {
		if f.raw == "" {
			*f.field = f.def
			continue
		}
		v, err := time.ParseDuration(f.raw)
		if err != nil || v <= 0 {
			return durations{}, fmt.Errorf("postgres: invalid %s %q", f.name, f.raw)
		}
		*f.field = v
	}
	return d, nil
}

// NewPool creates a pgx connection pool using the provided config and verifies connectivity.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	settings, err := poolSettings(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = settings.maxConnLifetime
	poolCfg.MaxConnIdleTime = settings.maxConnIdleTime
	poolCfg.HealthCheckPeriod = settings.healthCheckPeriod

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

// ConnString renders cfg as a postgres:// URL, defaulting host, port and sslmode.
func ConnString(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	switch {
	case cfg.User != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}
	return u.String()
}
