package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	vars := map[string]string{
		"ITEMS_PRIMARY.ENV":                   "test",
		"ITEMS_SERVER.PORT":                   "8080",
		"ITEMS_SERVER.READ_TIMEOUT":           "30",
		"ITEMS_SERVER.WRITE_TIMEOUT":          "30",
		"ITEMS_SERVER.IDLE_TIMEOUT":           "60",
		"ITEMS_SERVER.CORS_ALLOWED_ORIGINS":   "http://localhost:3000",
		"ITEMS_DATABASE.HOST":                 "localhost",
		"ITEMS_DATABASE.PORT":                 "5432",
		"ITEMS_DATABASE.USER":                 "items",
		"ITEMS_DATABASE.PASSWORD":             "secret",
		"ITEMS_DATABASE.NAME":                 "items",
		"ITEMS_DATABASE.SSL_MODE":             "disable",
		"ITEMS_DATABASE.MAX_OPEN_CONNS":       "10",
		"ITEMS_DATABASE.MAX_IDLE_CONNS":       "5",
		"ITEMS_DATABASE.CONN_MAX_LIFETIME":    "300",
		"ITEMS_DATABASE.CONN_MAX_IDLE_TIME":   "60",
		"ITEMS_REDIS.ADDRESS":                 "localhost:6379",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("AppliesDefaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 5432, cfg.Database.Port)

		require.NotNil(t, cfg.Observability)
		assert.Equal(t, ServiceName, cfg.Observability.ServiceName)
		assert.Equal(t, "test", cfg.Observability.Environment)
		assert.False(t, cfg.Observability.NewRelicEnabled())

		require.NotNil(t, cfg.Batch)
		assert.Equal(t, 60*time.Second, cfg.Batch.ShutdownTimeout)
		assert.Equal(t, 100*time.Millisecond, cfg.Batch.ProcessingDelay)
		assert.Equal(t, runtime.NumCPU(), cfg.Batch.PoolSize())
	})

	t.Run("ReadsBatchBlock", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ITEMS_BATCH.WORKERS", "3")
		t.Setenv("ITEMS_BATCH.PROCESSING_DELAY", "250ms")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 3, cfg.Batch.PoolSize())
		assert.Equal(t, 250*time.Millisecond, cfg.Batch.ProcessingDelay)
		assert.Equal(t, 60*time.Second, cfg.Batch.ShutdownTimeout, "unset field keeps its default")
	})

	t.Run("PartialBatchBlockKeepsDelayDefault", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ITEMS_BATCH.WORKERS", "2")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.Batch.PoolSize())
		assert.Equal(t, 100*time.Millisecond, cfg.Batch.ProcessingDelay)
	})

	t.Run("ExplicitZeroDelay", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ITEMS_BATCH.PROCESSING_DELAY", "0s")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Zero(t, cfg.Batch.ProcessingDelay)
	})

	t.Run("MissingRequired", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ITEMS_DATABASE.HOST", "")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("RejectsShortShutdownTimeout", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ITEMS_BATCH.SHUTDOWN_TIMEOUT", "10ms")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "shutdown_timeout")
	})
}

func TestObservabilityConfig_Validate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		assert.NoError(t, DefaultObservabilityConfig().Validate())
	})

	t.Run("BadLevel", func(t *testing.T) {
		c := DefaultObservabilityConfig()
		c.Logging.Level = "verbose"
		assert.ErrorContains(t, c.Validate(), "invalid logging level")
	})

	t.Run("BadFormat", func(t *testing.T) {
		c := DefaultObservabilityConfig()
		c.Logging.Format = "xml"
		assert.ErrorContains(t, c.Validate(), "invalid logging format")
	})

	t.Run("NegativeSlowQueryThreshold", func(t *testing.T) {
		c := DefaultObservabilityConfig()
		c.Logging.SlowQueryThreshold = -time.Second
		assert.Error(t, c.Validate())
	})
}

func TestObservabilityConfig_HealthCheckEnabled(t *testing.T) {
	c := DefaultObservabilityConfig()
	assert.True(t, c.HealthCheckEnabled("database"))
	assert.True(t, c.HealthCheckEnabled("redis"))
	assert.False(t, c.HealthCheckEnabled("kafka"))

	c.HealthChecks.Enabled = false
	assert.False(t, c.HealthCheckEnabled("database"))
}

func TestObservabilityConfig_GetLogLevel(t *testing.T) {
	c := DefaultObservabilityConfig()
	c.Logging.Level = ""

	c.Environment = "production"
	assert.Equal(t, "info", c.GetLogLevel())

	c.Environment = "development"
	assert.Equal(t, "debug", c.GetLogLevel())

	c.Logging.Level = "warn"
	assert.Equal(t, "warn", c.GetLogLevel())
}

func TestBatchConfig_Validate(t *testing.T) {
	c := DefaultBatchConfig()
	assert.NoError(t, c.Validate())

	c.Workers = -1
	assert.Error(t, c.Validate())

	c = DefaultBatchConfig()
	c.ProcessingDelay = -time.Millisecond
	assert.Error(t, c.Validate())
}
