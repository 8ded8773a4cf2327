package config

import (
	"fmt"

	"github.com/hpc-io/pdc-sub004/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the pdcd configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  pdcd config validate

  # Validate specific config file
  pdcd config validate --config /etc/pdc/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Cache.MaxSize == 0 {
		warnings = append(warnings, "cache.max_size is 0 - the cache never flushes for capacity")
	}
	if !cfg.Cache.IdleFlushEnabled() {
		warnings = append(warnings, "idle flushing disabled - regions persist only on explicit flush, capacity pressure or shutdown")
	}
	if cfg.Storage.RegionStoreInMemory {
		warnings = append(warnings, "storage.region_store_in_memory is set - regions of objects without dims are lost on exit")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
	return nil
}
