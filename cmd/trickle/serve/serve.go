// Package servecmder provides the serve command, which runs the demo SSE
// producer.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/trickle/api"
	"github.com/papercomputeco/trickle/pkg/config"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/dotdir"
	"github.com/papercomputeco/trickle/pkg/logger"
)

type serveCommander struct {
	listen     string
	chunkSize  int
	chunkDelay time.Duration
	failFirst  int
	dropAfter  int
	retryHint  time.Duration
	replyFile  string
	noLogFile  bool
	configDir  string
	debug      bool

	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagChunkSize,
	config.FlagChunkDelay,
	config.FlagFailFirst,
	config.FlagDropAfter,
}

const serveLongDesc string = `Run the demo SSE chat producer.

The producer answers POST /chat (JSON {"query", "history"}) and
GET /chat?query=... with a text/event-stream reply. Text is escaped for
SSE framing and split into message events; an "end" event closes every
complete reply. Clients resuming with Last-Event-ID continue after that
event.

Failure injection exercises client recovery:
  --fail-first N   reject the first N requests with 503 and Retry-After
  --drop-after N   close fresh streams after N message events

Logs go to the terminal and to trickle.log in the .trickle/ directory.

Examples:
  trickle serve
  trickle serve --listen :4000 --chunk-delay 100ms
  trickle serve --fail-first 1 --drop-after 3`

const serveShortDesc string = "Run the demo SSE producer"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.load(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddDurationFlag(cmd, config.Flags, config.FlagChunkDelay, &cmder.chunkDelay)
	config.AddIntFlag(cmd, config.Flags, config.FlagFailFirst, &cmder.failFirst)
	config.AddIntFlag(cmd, config.Flags, config.FlagDropAfter, &cmder.dropAfter)
	cmd.Flags().DurationVar(&cmder.retryHint, "retry-hint", 0, "Send a retry: field with this reconnect delay")
	cmd.Flags().StringVar(&cmder.replyFile, "reply-file", "", "Answer every query with the contents of this file")
	cmd.Flags().BoolVar(&cmder.noLogFile, "no-log-file", false, "Do not write trickle.log")

	return cmd
}

// load resolves the flag > env > file > default chain into the commander.
func (c *serveCommander) load(v *viper.Viper) {
	c.listen = v.GetString("server.listen")
	c.chunkSize = v.GetInt("server.chunk_size")
	c.chunkDelay = v.GetDuration("server.chunk_delay")
	c.failFirst = v.GetInt("server.fail_first")
	c.dropAfter = v.GetInt("server.drop_after")
}

func (c *serveCommander) run() error {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(os.Stderr),
	)
	c.logger = console

	if !c.noLogFile {
		path, err := dotdir.NewManager().LogPath(c.configDir)
		if err != nil {
			return fmt.Errorf("resolving log file: %w", err)
		}
		f, err := logger.File(path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(console, logger.New(
			logger.WithDebug(c.debug),
			logger.WithFormat(logger.FormatJSON),
			logger.WithWriter(f),
			logger.WithComponent("producer"),
		))
	}

	responder, err := c.responder()
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{
		ListenAddr: c.listen,
		ChunkSize:  c.chunkSize,
		ChunkDelay: c.chunkDelay,
		FailFirst:  c.failFirst,
		DropAfter:  c.dropAfter,
		RetryHint:  c.retryHint,
	}, responder, c.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("producer error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		c.logger.Info("shutting down producer")
		return server.Shutdown()
	})

	return g.Wait()
}

// responder returns the fixed-reply responder for --reply-file, or nil for
// the echo responder.
func (c *serveCommander) responder() (api.Responder, error) {
	if c.replyFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.replyFile)
	if err != nil {
		return nil, fmt.Errorf("reading reply file: %w", err)
	}
	reply := string(data)

	return api.ResponderFunc(func(string, []conversation.Message) string {
		return reply
	}), nil
}
