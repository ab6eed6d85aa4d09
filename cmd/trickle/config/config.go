// Package configcmder provides the config command for managing persistent
// trickle configuration stored in the .trickle/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent trickle configuration.

Configuration is stored as config.toml in the .trickle/ directory and provides
default values for command flags. CLI flags and TRICKLE_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.endpoint, client.method, client.newline_mode, client.timeout,
  retry.max_attempts, retry.initial_interval, retry.max_interval,
  history.driver, history.path, history.sqlite_path, history.postgres_dsn,
  server.listen, server.chunk_size, server.chunk_delay,
  server.fail_first, server.drop_after,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to manage configuration values:
  trickle config init [--preset]    Write a fresh config file
  trickle config set <key> <value>  Set a configuration value
  trickle config get <key>          Get a configuration value
  trickle config list               List all configuration values

Examples:
  trickle config set client.endpoint http://localhost:3015/chat
  trickle config set history.driver sqlite
  trickle config get retry.max_attempts
  trickle config list`

const configShortDesc string = "Manage persistent trickle configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
