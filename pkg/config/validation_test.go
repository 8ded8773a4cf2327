package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"BadLevel", func(c *Config) { c.Logging.Level = "LOUD" }, "Level"},
		{"BadFormat", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"NegativeRank", func(c *Config) { c.Server.Rank = -1 }, "Rank"},
		{"SampleRate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "SampleRate"},
		{"Port", func(c *Config) { c.API.Port = 70000 }, "Port"},
		{"FlushWorkers", func(c *Config) { c.Cache.FlushWorkers = 1000 }, "FlushWorkers"},
		{"FlushInterval", func(c *Config) { c.Cache.FlushInterval = -1 }, "flush_interval"},
		{"RegionStorePath", func(c *Config) { c.Storage.RegionStorePath = "" }, "region_store_path"},
		{"InMemoryRegionStore", func(c *Config) {
			c.Storage.RegionStorePath = ""
			c.Storage.RegionStoreInMemory = true
		}, ""},
		{"JobTimeout", func(c *Config) { c.Transfer.JobTimeout = -1 }, "job_timeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
