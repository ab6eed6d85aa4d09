package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/config"
)

const initLongDesc string = `Write a fresh config.toml into the .trickle/ directory.

Without --preset the defaults are written. Presets:
  local   the defaults (demo producer on localhost:3015)
  flaky   a producer that fails the first open and drops streams,
          with a client that retries quickly
  legacy  GET requests with the query parameter and HTML line breaks

An existing config file is kept unless --force is given.

Examples:
  trickle config init
  trickle config init --preset flaky --force`

const initShortDesc string = "Write a fresh config file"

func newInitCmd() *cobra.Command {
	var (
		preset string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd.OutOrStdout(), preset, force, configDir)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Preset to write ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(w io.Writer, preset string, force bool, configDir string) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", target)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Wrote %s\n\n", cliui.SuccessMark, cliui.DimStyle.Render(target))
	return nil
}
