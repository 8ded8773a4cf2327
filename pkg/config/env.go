package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables understood by earlier PDC deployments. They are
// applied after the file and PDC_* overrides, and only fill values those
// left unset.
const (
	EnvDataLoc            = "PDC_DATA_LOC"
	EnvScratch            = "SCRATCH"
	EnvCacheMaxSize       = "PDC_SERVER_CACHE_MAX_SIZE"
	EnvCacheFlushFrequency = "PDC_SERVER_CACHE_FLUSH_FREQUENCY_S"
)

func applyLegacyEnv(cfg *Config) error {
	if cfg.Server.DataRoot == "" {
		if v := os.Getenv(EnvDataLoc); v != "" {
			cfg.Server.DataRoot = v
		} else if v := os.Getenv(EnvScratch); v != "" {
			cfg.Server.DataRoot = v
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvCacheMaxSize)); v != "" && cfg.Cache.MaxSize == 0 {
		size, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheMaxSize, err)
		}
		cfg.Cache.MaxSize = size
	}

	if v := strings.TrimSpace(os.Getenv(EnvCacheFlushFrequency)); v != "" && cfg.Cache.IdleThreshold == 0 {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid seconds %q: %w", EnvCacheFlushFrequency, v, err)
		}
		cfg.Cache.IdleThreshold = time.Duration(secs) * time.Second
	}
	return nil
}
