package postgres

import (
	"testing"
	"time"

	"github.com/sifan077/utmlink/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.PostgresConfig{Database: "utmlink"},
			want: "postgres://localhost:5432/utmlink?sslmode=disable",
		},
		{
			name: "escaped credentials",
			cfg:  config.PostgresConfig{Host: "db", Port: 6543, User: "app", Password: "p@ss/word", Database: "links", SSLMode: "require"},
			want: "postgres://app:p%40ss%2Fword@db:6543/links?sslmode=require",
		},
		{
			name: "user only",
			cfg:  config.PostgresConfig{User: "app", Database: "links"},
			want: "postgres://app@localhost:5432/links?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnString(tt.cfg))
		})
	}
}

func TestPoolSettings(t *testing.T) {
	d, err := poolSettings(config.PostgresConfig{MaxConnLifetime: "1h"})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d.maxConnLifetime)
	assert.Equal(t, defaultMaxConnIdleTime, d.maxConnIdleTime)
	assert.Equal(t, defaultHealthCheck, d.healthCheckPeriod)

	_, err = poolSettings(config.PostgresConfig{HealthCheckPeriod: "often"})
	assert.ErrorContains(t, err, "health_check_period")
}
