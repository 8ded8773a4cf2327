package commands

import (
	"fmt"

	"github.com/hpc-io/pdc-sub004/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample pdcd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/pdc/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  pdcd init

  # Initialize with custom path
  pdcd init --config /etc/pdc/config.yaml

  # Force overwrite existing config
  pdcd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set server.rank and server.data_root for this server")
	fmt.Fprintln(out, "  2. Start the server with: pdcd start")
	fmt.Fprintf(out, "  3. Or specify custom config: pdcd start --config %s\n", configPath)
	return nil
}
