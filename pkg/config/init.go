package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# PDC Region Server Configuration File
#
# Every key can be overridden with a PDC_ environment variable, e.g.
#   PDC_LOGGING_LEVEL=DEBUG
#   PDC_CACHE_MAX_SIZE=64GB
#
# Legacy variables are honoured when the matching key is unset:
#   PDC_DATA_LOC / SCRATCH              -> server.data_root
#   PDC_SERVER_CACHE_MAX_SIZE           -> cache.max_size (bytes)
#   PDC_SERVER_CACHE_FLUSH_FREQUENCY_S  -> cache.idle_threshold (seconds)

`

// InitConfig writes a default configuration file to the default location
// and returns its path. It refuses to overwrite unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := Render(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Render returns cfg as commented YAML.
func Render(cfg *Config) ([]byte, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return append([]byte(configHeader), body...), nil
}
