package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
)

// DefaultCacheMaxSize is the resident cap used when none is configured.
const DefaultCacheMaxSize = 96 * datasize.GB

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.API.ApplyDefaults()
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage, cfg.Server)
	applyCacheDefaults(&cfg.Cache)
	applyTransferDefaults(&cfg.Transfer)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.DataRoot == "" {
		cfg.DataRoot = "."
	}
}

// applyStorageDefaults places the region store next to the flat files.
func applyStorageDefaults(cfg *StorageConfig, server ServerConfig) {
	if cfg.RegionStorePath == "" && !cfg.RegionStoreInMemory {
		cfg.RegionStorePath = filepath.Join(server.DataRoot, "pdc_data", "regions")
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultCacheMaxSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 30 * time.Second
	}
	if cfg.FlushWorkers == 0 {
		cfg.FlushWorkers = 4
	}
}

func applyTransferDefaults(cfg *TransferConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}
	if cfg.RecentCapacity == 0 {
		cfg.RecentCapacity = 4096
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
