package historycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/config"
)

type listCommander struct {
	history  config.HistoryConfig
	jsonOut  bool
	full     bool
	settings *client.Settings
}

const listLongDesc string = `List the stored conversation, oldest turn first.

Each turn is shown on one line, truncated, unless --full is given.
Turns that were stopped or cut short are marked [incomplete].

Examples:
  trickle history list
  trickle history list --full
  trickle history list --json | jq '.[].content'`

const listShortDesc string = "List stored turns"

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
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
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the turns as JSON")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print full turn content")

	return cmd
}

func (c *listCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	driver, err := client.OpenHistory(ctx, c.settings)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if driver == nil {
		return fmt.Errorf("history is disabled (history.driver = %q)", c.settings.History.Driver)
	}
	defer driver.Close()

	turns, err := driver.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if turns == nil {
			return enc.Encode([]any{})
		}
		return enc.Encode(turns)
	}

	if len(turns) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("  No history yet."))
		return nil
	}

	for _, t := range turns {
		writeTurn(w, t, c.full)
	}
	fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d turns", len(turns))))
	return nil
}
