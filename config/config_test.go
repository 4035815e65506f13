package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndLegacyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("BLOCKED_DOMAINS", "spam.com, Evil.org")
	t.Setenv("RATE_LIMIT_PER_HOUR", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.Equal(t, "spam.com, Evil.org", cfg.Shortener.BlockedDomains)
	assert.Equal(t, 7, cfg.Shortener.RateLimitPerHour)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/s/not-found", cfg.Server.NotFoundURL)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "truncate", cfg.Shortener.IPPolicy)
	assert.Equal(t, "CF-IPCountry", cfg.Shortener.CountryHeader)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.Interval)
}

func TestShortenerConfig_CreationLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		want    int
		wantErr bool
	}{
		{name: "configured", limit: 50, want: 50},
		{name: "zero", limit: 0, wantErr: true},
		{name: "negative", limit: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShortenerConfig{RateLimitPerHour: tt.limit}.CreationLimit()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRateLimitUnset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
