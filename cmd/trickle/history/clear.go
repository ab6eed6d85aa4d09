package historycmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/config"
)

type clearCommander struct {
	history  config.HistoryConfig
	settings *client.Settings
}

const clearShortDesc string = "Delete the stored conversation"

func newClearCmd() *cobra.Command {
	cmder := &clearCommander{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: clearShortDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.settings, err = loadSettings(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	addHistoryFlags(cmd, &cmder.history)

	return cmd
}

func (c *clearCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	driver, err := client.OpenHistory(ctx, c.settings)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if driver == nil {
		return nil
	}
	defer driver.Close()

	return cliui.Step(w, "Clearing history", func() error {
		return driver.Clear(ctx)
	})
}
