// Package historycmder provides the history command and its subcommands.
package historycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/config"
)

const historyLongDesc string = `Inspect the stored conversation.

The history lives wherever the configured driver keeps it, a JSON file in
.trickle/ by default. Override the driver with --history-driver or the
history.driver config key.

Examples:
  trickle history list
  trickle history list --json
  trickle history tail --follow
  trickle history clear`

const historyShortDesc string = "Inspect the stored conversation"

var historyFlags = []string{
	config.FlagHistoryDriver,
	config.FlagHistoryPath,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newTailCmd())

	return cmd
}

// addHistoryFlags registers the driver selection flags on a subcommand.
func addHistoryFlags(cmd *cobra.Command, h *config.HistoryConfig) {
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryDriver, &h.Driver)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryPath, &h.Path)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &h.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &h.PostgresDSN)
}

// loadSettings resolves the client settings with the history flags bound.
func loadSettings(cmd *cobra.Command) (*client.Settings, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, historyFlags)
	return client.SettingsFromViper(v, configDir)
}
