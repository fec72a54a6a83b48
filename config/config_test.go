package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_KEY", "demo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "finance.db", cfg.DBPath)
	assert.Equal(t, "file", cfg.SessionStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionLifetime)
	assert.True(t, cfg.StartingCash.Equal(decimal.RequireFromString("10000")))
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_KEY", "k")
	t.Setenv("STARTING_CASH", "2500.50")
	t.Setenv("QUOTE_CACHE_TTL", "0s")
	t.Setenv("STAGE", "prod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.StartingCash.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, time.Duration(0), cfg.QuoteCacheTTL)
	assert.True(t, cfg.IsProd())
}

func TestValidate(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", SessionStore: "file"}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)

	cfg.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.SessionStore = "redis"
	assert.Error(t, cfg.Validate(), "redis sessions need REDIS_ADDR")

	cfg.RedisAddr = "127.0.0.1:6379"
	assert.NoError(t, cfg.Validate())

	cfg.DBDriver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBDriver: "postgres", DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "finance", DBPort: "5432"}
	assert.Equal(t, "host=db user=u password=p dbname=finance port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())

	cfg = &Config{DBDriver: "sqlite", DBPath: "/tmp/x.db"}
	assert.Equal(t, "/tmp/x.db?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", cfg.DSN())
}
