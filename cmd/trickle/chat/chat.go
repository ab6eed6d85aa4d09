// Package chatcmder provides the chat command for interactive streaming chat
// against an SSE producer.
package chatcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/config"
	"github.com/papercomputeco/trickle/pkg/dotdir"
	"github.com/papercomputeco/trickle/pkg/logger"
	"github.com/papercomputeco/trickle/pkg/stream"
	"github.com/papercomputeco/trickle/pkg/transport"
)

type chatCommander struct {
	endpoint    string
	method      string
	newlineMode string
	maxAttempts int
	history     config.HistoryConfig

	fresh  bool
	plain  bool
	record string

	configDir string
	debug     bool

	settings *client.Settings
	logger   *slog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// transport replaces the HTTP transport in tests.
	transport transport.Transport
}

var chatFlags = []string{
	config.FlagEndpoint,
	config.FlagMethod,
	config.FlagNewlineMode,
	config.FlagMaxAttempts,
	config.FlagHistoryDriver,
	config.FlagHistoryPath,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

const chatLongDesc string = `Start an interactive chat session against an SSE producer.

Replies stream into the conversation as they arrive and are rendered as
markdown once complete. A dropped stream reconnects with backoff. Every
finished turn is stored in the history, and the stored conversation is
restored on the next run unless --new is given.

Keys:
  enter       send
  alt+enter   new line
  esc         stop the streaming reply
  pgup/pgdn   scroll
  ctrl+c      quit

--plain switches to a line based prompt suited to pipes and dumb
terminals. There, Ctrl+C stops a streaming reply and /exit or Ctrl+D
quits.

Examples:
  trickle chat
  trickle chat --new --endpoint http://localhost:3015/chat
  trickle chat --plain --newline-mode html`

const chatShortDesc string = "Interactive streaming chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			return cmder.load(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagMethod, &cmder.method)
	config.AddStringFlag(cmd, config.Flags, config.FlagNewlineMode, &cmder.newlineMode)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxAttempts, &cmder.maxAttempts)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryDriver, &cmder.history.Driver)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryPath, &cmder.history.Path)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.history.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.history.PostgresDSN)
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of restoring the stored one")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Use a line based prompt instead of the full screen UI")
	cmd.Flags().StringVar(&cmder.record, "record", "", "Append the raw SSE streams to this file")

	return cmd
}

func (c *chatCommander) load(v *viper.Viper) error {
	settings, err := client.SettingsFromViper(v, c.configDir)
	if err != nil {
		return err
	}
	c.settings = settings
	return nil
}

// newLogger logs to the .trickle log file. The terminal belongs to the chat.
func (c *chatCommander) newLogger() (*slog.Logger, func(), error) {
	path, err := dotdir.NewManager().LogPath(c.configDir)
	if err != nil {
		return nil, nil, err
	}
	f, err := logger.File(path)
	if err != nil {
		return nil, nil, err
	}
	l := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
		logger.WithComponent("chat"),
	)
	return l, func() { _ = f.Close() }, nil
}

func (c *chatCommander) run(ctx context.Context) error {
	l, closeLog, err := c.newLogger()
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog()
	c.logger = l

	var opts []client.Option
	if c.transport != nil {
		opts = append(opts, client.WithTransport(c.transport))
	}
	if c.fresh {
		opts = append(opts, client.WithFreshHistory())
	}
	if c.record != "" {
		f, err := openRecord(c.record)
		if err != nil {
			return err
		}
		defer f.Close()
		opts = append(opts, client.WithStreamOptions(stream.WithTee(f)))
	}

	if c.plain {
		return c.runPlain(ctx, opts)
	}
	return c.runTUI(ctx, opts)
}

func openRecord(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	return f, nil
}
