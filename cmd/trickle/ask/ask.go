// Package askcmder provides the ask command, which streams a single reply to
// stdout.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/config"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/logger"
	"github.com/papercomputeco/trickle/pkg/stream"
	"github.com/papercomputeco/trickle/pkg/transport"
)

type askCommander struct {
	endpoint    string
	method      string
	newlineMode string
	maxAttempts int
	timeout     string

	record   string
	html     bool
	render   bool
	cont     bool

	configDir string
	debug     bool

	settings *client.Settings
	logger   *slog.Logger

	out    io.Writer
	errOut io.Writer

	// transport replaces the HTTP transport in tests.
	transport transport.Transport
}

var askFlags = []string{
	config.FlagEndpoint,
	config.FlagMethod,
	config.FlagNewlineMode,
	config.FlagMaxAttempts,
}

const askLongDesc string = `Ask a single question and stream the reply to stdout.

Chunks are printed as they arrive. Dropped streams reconnect with
backoff; a reply that could not be completed is printed as far as it got
and the command exits non-zero. Ctrl+C stops the stream.

A query of "-" is read from stdin.

With --continue the stored conversation is sent along as history and the
exchange is appended to it. Otherwise the question stands alone and
nothing is persisted.

Examples:
  trickle ask "What is SSE?"
  echo "Summarize this" | trickle ask -
  trickle ask --render "Write a markdown table"
  trickle ask --html --record stream.sse "Hello"`

const askShortDesc string = "Ask a single question"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, askFlags)
			return cmder.load(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			query, err := readQuery(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), query)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagMethod, &cmder.method)
	config.AddStringFlag(cmd, config.Flags, config.FlagNewlineMode, &cmder.newlineMode)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxAttempts, &cmder.maxAttempts)
	cmd.Flags().StringVar(&cmder.record, "record", "", "Write the raw SSE stream to this file")
	cmd.Flags().BoolVar(&cmder.html, "html", false, "Print the finished reply as HTML instead of streaming it")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the finished reply as markdown instead of streaming it")
	cmd.Flags().BoolVarP(&cmder.cont, "continue", "c", false, "Continue the stored conversation and record this exchange")
	cmd.MarkFlagsMutuallyExclusive("html", "render")

	return cmd
}

func (c *askCommander) load(v *viper.Viper) error {
	settings, err := client.SettingsFromViper(v, c.configDir)
	if err != nil {
		return err
	}
	if !c.cont {
		settings.History.Driver = config.HistoryDriverNone
	}
	c.settings = settings
	return nil
}

func readQuery(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading query from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}

func (c *askCommander) run(ctx context.Context, query string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(c.errOut),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	streaming := !c.html && !c.render
	printer := &deltaPrinter{w: c.out}

	opts := []client.Option{
		client.WithLogger(c.logger),
		client.WithObserver(conversation.Observer{
			OnTurn: func(t conversation.Turn) {
				if streaming && t.Role == conversation.RoleAssistant {
					printer.print(t.Content)
				}
			},
			OnRetry: func(attempt int, delay time.Duration, err error) {
				c.logger.Warn("reconnecting", "attempt", attempt, "delay", delay, "error", err)
			},
		}),
	}
	if c.transport != nil {
		opts = append(opts, client.WithTransport(c.transport))
	}

	if c.record != "" {
		f, err := os.Create(c.record)
		if err != nil {
			return fmt.Errorf("creating record file: %w", err)
		}
		defer f.Close()
		opts = append(opts, client.WithStreamOptions(stream.WithTee(f)))
	}

	cl, err := client.New(ctx, c.settings, opts...)
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.Send(ctx, query); err != nil {
		return err
	}
	runErr := cl.Wait(context.Background())

	turns := cl.History().Turns()
	reply := turns[len(turns)-1].Content

	switch {
	case c.html:
		out, err := cliui.RenderHTML(reply)
		if err != nil {
			return err
		}
		fmt.Fprint(c.out, out)
	case c.render:
		out, err := cliui.RenderMarkdown(reply)
		if err != nil {
			c.logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprint(c.out, out)
	default:
		if reply != "" && !strings.HasSuffix(reply, "\n") {
			fmt.Fprintln(c.out)
		}
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, stream.ErrAborted):
		fmt.Fprintf(c.errOut, "  %s %s\n", cliui.WarnStyle.Render("■"), "stopped")
		return runErr
	default:
		fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, runErr)
		return runErr
	}
}

// deltaPrinter writes the part of a growing reply not printed yet.
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func (p *deltaPrinter) print(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(content) <= p.printed {
		return
	}
	fmt.Fprint(p.w, content[p.printed:])
	p.printed = len(content)
}
