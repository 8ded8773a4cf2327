package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/hpc-io/pdc-sub004/pkg/api"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PDC_CACHE_MAX_SIZE.
const EnvPrefix = "PDC"

// Config represents the PDC region server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (PDC_*, plus the legacy names in env.go)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown,
	// including the final cache flush
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the admin HTTP API configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Server identifies this server and where it keeps data
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage configures the durable backends
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Cache configures the region write-back cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Transfer configures asynchronous transfer requests
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics.
// When Enabled is false, no metrics are collected and /metrics answers 404.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ServerConfig identifies this server.
type ServerConfig struct {
	// Rank is this server's rank among the PDC servers. It selects the
	// durable file each object is written to.
	Rank int `mapstructure:"rank" validate:"gte=0" yaml:"rank"`

	// DataRoot is the directory holding pdc_data/.
	// Default: $PDC_DATA_LOC, then $SCRATCH, then "."
	DataRoot string `mapstructure:"data_root" validate:"required" yaml:"data_root"`
}

// StorageConfig configures the durable backends.
type StorageConfig struct {
	// SyncWrites fsyncs flat files after every flushed region and makes the
	// region store fsync every commit
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`

	// RegionStorePath is the BadgerDB directory for objects without a shape.
	// Default: <data_root>/pdc_data/regions
	RegionStorePath string `mapstructure:"region_store_path" yaml:"region_store_path"`

	// RegionStoreInMemory keeps shape-less objects in memory only
	RegionStoreInMemory bool `mapstructure:"region_store_in_memory" yaml:"region_store_in_memory"`
}

// CacheConfig configures the region write-back cache.
type CacheConfig struct {
	// MaxSize caps resident bytes; exceeding it flushes every object.
	// Supports human-readable sizes: "96GB", "512MB", "1024"
	// Default: 96GB
	MaxSize datasize.ByteSize `mapstructure:"max_size" yaml:"max_size"`

	// FlushInterval is how often the idle flusher sweeps.
	// Default: 10s. Set IdleThreshold negative to disable the flusher.
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`

	// IdleThreshold is how long an object must go untouched before the
	// idle flusher persists it.
	// Default: 30s
	IdleThreshold time.Duration `mapstructure:"idle_threshold" yaml:"idle_threshold"`

	// FlushWorkers bounds parallel object flushes.
	// Default: 4
	FlushWorkers int `mapstructure:"flush_workers" validate:"omitempty,min=1,max=256" yaml:"flush_workers"`
}

// IdleFlushEnabled reports whether the idle flusher should run.
func (c CacheConfig) IdleFlushEnabled() bool {
	return c.IdleThreshold > 0
}

// TransferConfig configures asynchronous transfers.
type TransferConfig struct {
	// Workers is the number of transfer workers.
	// Default: 4
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// QueueSize bounds queued transfers.
	// Default: 1000
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,min=1" yaml:"queue_size"`

	// RecentCapacity is how many finished ids are remembered after they
	// are collected.
	// Default: 4096
	RecentCapacity int `mapstructure:"recent_capacity" validate:"omitempty,min=1" yaml:"recent_capacity"`

	// JobTimeout bounds a single transfer.
	// Default: 5m
	JobTimeout time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: environment variables and defaults
// still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyLegacyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when an explicit
// config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  pdcd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and config file lookup.
func setupViper(v *viper.Viper, configPath string) {
	// Example: PDC_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/pdc/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs binds every leaf key of t so Unmarshal sees environment
// overrides even for keys absent from the config file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		ft := f.Type
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Duration(0)) {
			bindEnvs(v, ft, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to datasize.ByteSize, so
// sizes can be written as "96GB", "512mb" or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(datasize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseSize(v)
		case int:
			return datasize.ByteSize(v), nil
		case int64:
			return datasize.ByteSize(v), nil
		case uint64:
			return datasize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return datasize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration. Raw
// integers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// ParseSize parses a human-readable size. A bare number is a byte count.
func ParseSize(s string) (datasize.ByteSize, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return size, nil
}

// getConfigDir returns $XDG_CONFIG_HOME/pdc, ~/.config/pdc, or "." when no
// home directory can be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pdc")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "pdc")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
