package historycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/config"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/storage/jsonfile"
)

type tailCommander struct {
	history  config.HistoryConfig
	lines    int
	follow   bool
	settings *client.Settings
}

const tailLongDesc string = `Print the most recent turns.

With --follow the command keeps running and prints each turn as another
trickle process finalizes it. Following needs the jsonfile history
driver, since it watches the history file for changes.

Examples:
  trickle history tail
  trickle history tail -n 3
  trickle history tail --follow`

const tailShortDesc string = "Print the latest turns"

func newTailCmd() *cobra.Command {
	cmder := &tailCommander{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: tailShortDesc,
		Long:  tailLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.settings, err = loadSettings(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			err := cmder.run(ctx, cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	addHistoryFlags(cmd, &cmder.history)
	cmd.Flags().IntVarP(&cmder.lines, "lines", "n", 10, "Number of turns to print")
	cmd.Flags().BoolVarP(&cmder.follow, "follow", "f", false, "Keep printing turns as they are finalized")

	return cmd
}

func (c *tailCommander) run(ctx context.Context, w io.Writer) error {
	driver, err := client.OpenHistory(ctx, c.settings)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if driver == nil {
		return fmt.Errorf("history is disabled (history.driver = %q)", c.settings.History.Driver)
	}
	defer driver.Close()

	if !c.follow {
		turns, err := driver.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
		for _, t := range lastN(turns, c.lines) {
			writeTurn(w, t, false)
		}
		return nil
	}

	jf, ok := driver.(*jsonfile.Driver)
	if !ok {
		return fmt.Errorf("--follow requires the %q history driver", config.HistoryDriverJSONFile)
	}

	f := &follower{w: w, lines: c.lines}
	return jf.Watch(ctx, f.update)
}

func lastN(turns []conversation.Turn, n int) []conversation.Turn {
	if n < 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// follower prints the turns that appeared since its previous update.
type follower struct {
	mu      sync.Mutex
	w       io.Writer
	lines   int
	started bool
	printed int
}

func (f *follower) update(turns []conversation.Turn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		f.started = true
		for _, t := range lastN(turns, f.lines) {
			writeTurn(f.w, t, false)
		}
		f.printed = len(turns)
		return
	}

	if len(turns) < f.printed {
		fmt.Fprintln(f.w, cliui.DimStyle.Render("  -- history cleared --"))
		f.printed = 0
	}

	for _, t := range turns[f.printed:] {
		writeTurn(f.w, t, false)
	}
	f.printed = len(turns)
}
