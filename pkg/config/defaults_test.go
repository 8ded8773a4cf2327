package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hpc-io/pdc-sub004/pkg/api"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.NotEmpty(t, cfg.Telemetry.Profiling.ProfileTypes)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.API.IsEnabled())
	assert.Equal(t, DefaultCacheMaxSize, cfg.Cache.MaxSize)
	assert.Equal(t, 10*time.Second, cfg.Cache.FlushInterval)
	assert.Equal(t, 30*time.Second, cfg.Cache.IdleThreshold)
	assert.Equal(t, 4, cfg.Cache.FlushWorkers)
	assert.Equal(t, 4096, cfg.Transfer.RecentCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Transfer.JobTimeout)
	assert.Equal(t, "pdc_data/regions", cfg.Storage.RegionStorePath)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	disabled := false
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn"},
		API:     api.APIConfig{Enabled: &disabled, Port: 9999},
		Cache:   CacheConfig{IdleThreshold: -1},
		Storage: StorageConfig{RegionStoreInMemory: true},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.False(t, cfg.API.IsEnabled())
	assert.Equal(t, 9999, cfg.API.Port)
	assert.False(t, cfg.Cache.IdleFlushEnabled())
	assert.Empty(t, cfg.Storage.RegionStorePath)
}
