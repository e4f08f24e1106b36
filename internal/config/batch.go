package config

import (
	"fmt"
	"runtime"
	"time"
)

// BatchConfig tunes the batch processing engine and its worker pool.
type BatchConfig struct {
	// Workers is the worker pool size. Zero means one worker per CPU.
	Workers int `koanf:"workers"`

	// ProcessingDelay is the simulated per-item processing cost.
	ProcessingDelay time.Duration `koanf:"processing_delay"`

	// ShutdownTimeout bounds how long process exit waits for queued work
	// before the pool cancels it.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultBatchConfig is used when no ITEMS_BATCH.* variable is set.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		Workers:         0,
		ProcessingDelay: 100 * time.Millisecond,
		ShutdownTimeout: 60 * time.Second,
	}
}

// applyDefaults fills in the values a partial block left unset. isSet
// reports whether a key under "batch." was present, so an explicit
// processing_delay of 0 is kept.
func (c *BatchConfig) applyDefaults(isSet func(key string) bool) {
	defaults := DefaultBatchConfig()

	if !isSet("processing_delay") {
		c.ProcessingDelay = defaults.ProcessingDelay
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// Validate rejects nonsensical values.
func (c *BatchConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.ProcessingDelay < 0 {
		return fmt.Errorf("processing_delay must be non-negative, got %s", c.ProcessingDelay)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown_timeout must be at least 1s, got %s", c.ShutdownTimeout)
	}
	return nil
}

// PoolSize returns the effective worker count.
func (c *BatchConfig) PoolSize() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
