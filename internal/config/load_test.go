package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "configs"), 0755))

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(originalWD) })
	require.NoError(t, os.Chdir(tempDir))
	return tempDir
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	dir := chdirTemp(t)

	content := "APP_NAME=coins\nSERVER_PORT=9090\nLOG_LEVEL=debug\n" +
		"MONETIZATION_PLATFORM_WALLET_ID=platform-main\nMONETIZATION_HOLD_EARNINGS=true\n" +
		"RISK_COUNTER_BACKEND=redis\nREDIS_ADDR=redis:6379\nIDEMPOTENCY_TTL=2h\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "gateway.env"), []byte(content), 0644))

	cfg, err := LoadConfig("gateway")
	require.NoError(t, err)

	assert.Equal(t, "coins", cfg.Application.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "platform-main", cfg.Monetization.PlatformWalletID)
	assert.True(t, cfg.Monetization.HoldEarnings)
	assert.Equal(t, "redis", cfg.Risk.CounterBackend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Idempotency.TTL)

	// untouched keys keep their defaults
	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, "monetization_events", cfg.Kafka.EventsTopic)
	assert.Equal(t, "content_catalog", cfg.Kafka.CatalogTopic)
	assert.Equal(t, time.Hour, cfg.Monetization.RenewalCooldown)
	assert.Equal(t, 1024, cfg.Audit.QueueSize)
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig("missing")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Risk.CounterBackend)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, "platform", cfg.Monetization.PlatformWalletID)
	assert.False(t, cfg.Monetization.HoldEarnings)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "worker.env"), []byte("WORKER_POOL_SIZE=3\n"), 0644))
	t.Setenv("WORKER_POOL_SIZE", "7")

	cfg, err := LoadConfig("worker")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.WorkerPool.Size)
}

func TestConfig_Validate(t *testing.T) {
	defaults := func() *Config {
		v := viper.New()
		setDefaults(v)
		return fromViper(v)
	}

	t.Run("DefaultsAreValid", func(t *testing.T) {
		assert.NoError(t, defaults().validate())
	})

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"MissingPlatformWallet", func(c *Config) { c.Monetization.PlatformWalletID = "" }, "MONETIZATION_PLATFORM_WALLET_ID is required"},
		{"UnknownCounterBackend", func(c *Config) { c.Risk.CounterBackend = "memcached" }, "RISK_COUNTER_BACKEND must be one of memory, redis"},
		{"RedisBackendWithoutAddr", func(c *Config) { c.Risk.CounterBackend = "redis"; c.Redis.Addr = "" }, "REDIS_ADDR is required"},
		{"ZeroIdempotencyTTL", func(c *Config) { c.Idempotency.TTL = 0 }, "IDEMPOTENCY_TTL must be greater than 0"},
		{"NegativeCooldown", func(c *Config) { c.Monetization.RenewalCooldown = -time.Second }, "MONETIZATION_RENEWAL_COOLDOWN must not be negative"},
		{"MinConnsAboveMax", func(c *Config) { c.Postgres.MinConns = 50 }, "POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS"},
		{"MissingCatalogTopic", func(c *Config) { c.Kafka.CatalogTopic = "" }, "KAFKA_CATALOG_TOPIC is required"},
		{"ZeroAuditQueue", func(c *Config) { c.Audit.QueueSize = 0 }, "AUDIT_QUEUE_SIZE must be greater than 0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("CollectsAllErrors", func(t *testing.T) {
		cfg := defaults()
		cfg.Server.Port = 0
		cfg.Kafka.Brokers = ""
		cfg.Lifecycle.BatchSize = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SERVER_PORT must be greater than 0")
		assert.Contains(t, err.Error(), "KAFKA_BROKERS is required")
		assert.Contains(t, err.Error(), "LIFECYCLE_BATCH_SIZE must be greater than 0")
	})
}
