// Package configcmder provides the config command for managing persistent
// hvision configuration stored in the .hvision/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent hvision configuration.

Configuration is stored as config.toml in the .hvision/ directory and provides
default values for job flags. CLI flags and HVISION_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  pipeline.workers, pipeline.reducers, pipeline.max_attempts,
  pipeline.stall_timeout, pipeline.compression,
  vocabulary.k, vocabulary.max_iterations,
  search.method, search.hist_bins,
  detection.min_size, detection.max_size,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  artifacts.*, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  hvision config set <key> <value>    Set a configuration value
  hvision config get <key>            Get a configuration value
  hvision config list                 List all configuration values

Examples:
  hvision config set pipeline.workers 8
  hvision config set search.method bow
  hvision config get storage.driver
  hvision config list`

const configShortDesc string = "Manage persistent hvision configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
