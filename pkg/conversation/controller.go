// Package conversation drives a chat conversation over streamed responses.
//
// A Controller owns the turn history and at most one active stream session.
// Send starts a session and returns at once; chunks are applied to the
// in-flight assistant turn as they arrive and the turn is finalized when the
// stream ends, fails or is stopped.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/trickle/pkg/logger"
	"github.com/papercomputeco/trickle/pkg/sse"
	"github.com/papercomputeco/trickle/pkg/stream"
	"github.com/papercomputeco/trickle/pkg/transport"
)

var (
	// ErrBusy is returned by Send while a session is active.
	ErrBusy = errors.New("a response is still streaming")

	// ErrEmptyQuery is returned by Send for a blank query.
	ErrEmptyQuery = errors.New("empty query")
)

// Observer receives presentation updates. Every field is optional.
// Callbacks are invoked without the controller lock held.
type Observer struct {
	// OnTurn fires when a turn is added or changes, including every chunk
	// applied to the in-flight assistant turn.
	OnTurn func(turn Turn)

	// OnState mirrors the session state.
	OnState func(state stream.State)

	// OnRetry fires before the session waits to reconnect.
	OnRetry func(attempt int, delay time.Duration, err error)

	// OnEvent receives events the session passed through.
	OnEvent func(ev sse.Event)

	// OnFinish fires once per Send with the finalized assistant turn. err is
	// nil on completion, stream.ErrAborted after Stop and the failure
	// otherwise.
	OnFinish func(turn Turn, err error)
}

// Finalized describes a finished exchange.
type Finalized struct {
	Query       Turn
	Reply       Turn
	StartedAt   time.Time
	CompletedAt time.Time
	Err         error

	// History is the snapshot taken when the reply was finalized.
	History []Turn
}

// Sink consumes finalized exchanges. Sinks are called with the controller
// lock held, in finalization order, so they must not block; persistence that
// does I/O goes behind an asynchronous queue.
type Sink interface {
	TurnFinalized(ctx context.Context, f *Finalized) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f *Finalized) error

// TurnFinalized calls fn(ctx, f).
func (fn SinkFunc) TurnFinalized(ctx context.Context, f *Finalized) error {
	return fn(ctx, f)
}

type activeTurn struct {
	session   *stream.Session
	query     int
	reply     int
	startedAt time.Time
	done      chan struct{}
	err       error
}

// Controller runs one conversation.
type Controller struct {
	transport   transport.Transport
	build       RequestBuilder
	history     *History
	observer    Observer
	sinks       []Sink
	sessionOpts []stream.Option
	logger      *slog.Logger

	mu     sync.Mutex
	active *activeTurn
	last   *activeTurn
}

// Option configures a Controller.
type Option func(*Controller)

// WithHistory seeds the controller with restored turns.
func WithHistory(h *History) Option {
	return func(c *Controller) {
		c.history = h
	}
}

// WithObserver sets the presentation callbacks.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithSink adds sinks for finalized exchanges.
func WithSink(sinks ...Sink) Option {
	return func(c *Controller) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithSessionOptions passes options to every stream session.
func WithSessionOptions(opts ...stream.Option) Option {
	return func(c *Controller) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithLogger sets the controller logger. Sessions log through it too.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController returns an idle controller.
func NewController(t transport.Transport, build RequestBuilder, opts ...Option) *Controller {
	c := &Controller{
		transport: t,
		build:     build,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.history == nil {
		c.history = NewHistory()
	}
	return c
}

// History returns the conversation history.
func (c *Controller) History() *History {
	return c.history
}

// Busy reports whether a session is active.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Send submits query. It appends the user turn and an empty assistant turn,
// starts streaming the reply and returns without waiting for it. Cancelling
// ctx aborts the stream like Stop.
func (c *Controller) Send(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrBusy
	}

	req, err := c.build(query, c.history.Turns())
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("building request: %w", err)
	}

	queryTurn := NewTurn(RoleUser, query)
	replyTurn := NewTurn(RoleAssistant, "")
	replyTurn.Status = StatusPending

	i := c.history.append(queryTurn, replyTurn)
	at := &activeTurn{
		query:     i,
		reply:     i + 1,
		startedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}

	opts := append([]stream.Option{stream.WithLogger(c.logger)}, c.sessionOpts...)
	at.session = stream.New(c.transport, req, c.handler(at), opts...)
	c.active = at
	c.last = at
	c.mu.Unlock()

	c.logger.Debug("query sent", "turn", i, "bytes", len(query))

	c.notifyTurn(queryTurn)
	c.notifyTurn(replyTurn)

	go c.run(ctx, at)
	return nil
}

// Stop aborts the active session and marks its reply incomplete. Partial
// content stays in the history. Send is available again when Stop returns.
// Stop does nothing when no session is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	at := c.active
	if at == nil {
		c.mu.Unlock()
		return
	}
	c.active = nil

	turn := c.history.update(at.reply, func(t *Turn) {
		t.Status = StatusIncomplete
	})
	c.emit(at, turn, stream.ErrAborted)
	c.mu.Unlock()

	at.session.Abort()

	c.logger.Debug("stream stopped", "turn", at.reply, "bytes", len(turn.Content))

	c.notifyTurn(turn)
	if c.observer.OnFinish != nil {
		c.observer.OnFinish(turn, stream.ErrAborted)
	}
}

// Done returns a channel closed when the most recent session has finished.
// With no session ever started it returns a closed channel.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.last.done
}

// Wait blocks until the most recent session has finished and returns its
// outcome: nil on completion, stream.ErrAborted after Stop, or the failure.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	at := c.last
	c.mu.Unlock()
	if at == nil {
		return nil
	}

	select {
	case <-at.done:
		return at.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context, at *activeTurn) {
	err := at.session.Run(ctx)
	at.err = err
	c.finalize(at, err)
	close(at.done)
}

// finalize settles the reply once the session returned, unless Stop already
// did.
func (c *Controller) finalize(at *activeTurn, err error) {
	c.mu.Lock()
	if c.active != at {
		c.mu.Unlock()
		at.err = stream.ErrAborted
		return
	}
	c.active = nil

	status := StatusComplete
	if err != nil {
		status = StatusIncomplete
	}
	turn := c.history.update(at.reply, func(t *Turn) {
		t.Status = status
	})
	c.emit(at, turn, err)
	c.mu.Unlock()

	switch {
	case err == nil:
		c.logger.Debug("reply complete", "turn", at.reply, "bytes", len(turn.Content))
	case errors.Is(err, stream.ErrAborted):
		c.logger.Debug("reply aborted", "turn", at.reply)
	default:
		c.logger.Warn("reply incomplete", "turn", at.reply, "error", err)
	}

	c.notifyTurn(turn)
	if c.observer.OnFinish != nil {
		c.observer.OnFinish(turn, err)
	}
}

// emit hands the finalized exchange to the sinks. Callers hold c.mu.
func (c *Controller) emit(at *activeTurn, reply Turn, err error) {
	if len(c.sinks) == 0 {
		return
	}

	query, _ := c.history.At(at.query)
	f := &Finalized{
		Query:       query,
		Reply:       reply,
		StartedAt:   at.startedAt,
		CompletedAt: time.Now().UTC(),
		Err:         err,
		History:     c.history.Turns(),
	}

	for _, s := range c.sinks {
		if serr := s.TurnFinalized(context.Background(), f); serr != nil {
			c.logger.Error("sink rejected finalized turn", "turn", at.reply, "error", serr)
		}
	}
}

func (c *Controller) handler(at *activeTurn) stream.Handler {
	return stream.Handler{
		OnState: func(_, to stream.State) {
			if c.observer.OnState != nil && c.isActive(at) {
				c.observer.OnState(to)
			}
		},
		OnChunk: func(_, buffer string) error {
			c.mu.Lock()
			if c.active != at {
				c.mu.Unlock()
				return nil
			}
			turn := c.history.update(at.reply, func(t *Turn) {
				t.Content = buffer
			})
			c.mu.Unlock()

			c.notifyTurn(turn)
			return nil
		},
		OnEvent: func(ev sse.Event) error {
			if c.observer.OnEvent != nil && c.isActive(at) {
				c.observer.OnEvent(ev)
			}
			return nil
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			if c.observer.OnRetry != nil && c.isActive(at) {
				c.observer.OnRetry(attempt, delay, err)
			}
		},
	}
}

func (c *Controller) isActive(at *activeTurn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active == at
}

func (c *Controller) notifyTurn(t Turn) {
	if c.observer.OnTurn != nil {
		c.observer.OnTurn(t)
	}
}
