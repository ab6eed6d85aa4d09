package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/eventstream"
	"github.com/papercomputeco/trickle/pkg/logger"
	"github.com/papercomputeco/trickle/pkg/storage"
	"github.com/papercomputeco/trickle/pkg/stream"
	"github.com/papercomputeco/trickle/pkg/transport"
	"github.com/papercomputeco/trickle/pkg/utils"
	"github.com/papercomputeco/trickle/pkg/worker"
)

// Client is a conversation controller wired to its persistence.
type Client struct {
	*conversation.Controller

	driver    storage.Driver
	publisher eventstream.Publisher
	pool      *worker.Pool
	logger    *slog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	observer   conversation.Observer
	transport  transport.Transport
	streamOpts []stream.Option
	fresh      bool
}

// WithLogger sets the logger for the client and everything it builds.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the controller's presentation callbacks.
func WithObserver(obs conversation.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithStreamOptions adds options to every stream session.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *options) { o.streamOpts = append(o.streamOpts, opts...) }
}

// WithFreshHistory starts from an empty conversation instead of the stored
// one. The stored history is replaced on the first finalized turn.
func WithFreshHistory() Option {
	return func(o *options) { o.fresh = true }
}

// New opens the configured history and publisher and returns a Client whose
// controller restores the stored turns and persists every finalized turn.
func New(ctx context.Context, s *Settings, opts ...Option) (*Client, error) {
	o := &options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	if o.transport == nil {
		o.transport = transport.NewHTTPTransport(s.Timeout, transport.WithLogger(o.logger))
	}

	driver, err := OpenHistory(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	var turns []conversation.Turn
	if driver != nil && !o.fresh {
		turns, err = driver.Load(ctx)
		if err != nil {
			_ = driver.Close()
			return nil, fmt.Errorf("loading history: %w", err)
		}
	}

	publisher, err := OpenPublisher(s, o.logger)
	if err != nil {
		if driver != nil {
			_ = driver.Close()
		}
		return nil, fmt.Errorf("opening publisher: %w", err)
	}

	c := &Client{
		driver:    driver,
		publisher: publisher,
		logger:    o.logger,
	}

	controllerOpts := []conversation.Option{
		conversation.WithHistory(conversation.NewHistory(turns...)),
		conversation.WithObserver(o.observer),
		conversation.WithLogger(o.logger),
		conversation.WithSessionOptions(append([]stream.Option{
			stream.WithRetryPolicy(s.RetryPolicy()),
			stream.WithNewlineMode(s.NewlineMode),
		}, o.streamOpts...)...),
	}

	if driver != nil || publisher != nil {
		host, _ := os.Hostname()
		c.pool = worker.NewPool(&worker.Config{
			Driver:    driver,
			Publisher: publisher,
			Source: eventstream.EventSource{
				Client:   utils.ClientName(),
				Endpoint: s.Endpoint,
				Host:     host,
			},
			Logger: o.logger,
		})
		controllerOpts = append(controllerOpts, conversation.WithSink(c.pool))
	}

	c.Controller = conversation.NewController(o.transport, s.RequestBuilder(), controllerOpts...)

	o.logger.Debug("client ready",
		"endpoint", s.Endpoint,
		"method", s.Method,
		"history_driver", s.History.Driver,
		"restored_turns", len(turns),
	)

	return c, nil
}

// Driver returns the history driver, or nil when history is disabled.
func (c *Client) Driver() storage.Driver {
	return c.driver
}

// Close stops any active stream, drains pending persistence and releases
// the driver and publisher.
func (c *Client) Close() error {
	c.Stop()

	if c.pool != nil {
		c.pool.Close()
	}

	var errs []error
	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}
	if c.driver != nil {
		errs = append(errs, c.driver.Close())
	}
	return errors.Join(errs...)
}
