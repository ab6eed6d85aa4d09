// Package stream runs one server-sent-event session: it opens the stream
// through a transport, classifies failures, reconnects when allowed,
// unescapes message payloads into a growing buffer and reports progress
// through Handler callbacks.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/trickle/pkg/classify"
	"github.com/papercomputeco/trickle/pkg/escape"
	"github.com/papercomputeco/trickle/pkg/logger"
	"github.com/papercomputeco/trickle/pkg/sse"
	"github.com/papercomputeco/trickle/pkg/transport"
)

const maxErrorBody = 1024

var (
	// ErrAborted is returned by Run when the session was aborted, either by
	// Abort or by cancellation of the context passed to Run.
	ErrAborted = errors.New("stream aborted")

	// ErrClosed is returned by Run when the producer closed the stream
	// before sending the end event.
	ErrClosed = errors.New("stream closed before end event")

	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("session already started")
)

// Session is a single streamed request. It is not reusable: Run may be
// called once. Abort and the accessors are safe for concurrent use.
type Session struct {
	transport transport.Transport
	request   *transport.Request
	handler   Handler
	policy    transport.RetryPolicy
	mode      escape.NewlineMode
	tee       io.Writer
	logger    *slog.Logger

	mu     sync.Mutex
	state  State
	buffer strings.Builder
	cancel context.CancelFunc
	body   io.Closer
	err    error
	done   chan struct{}

	// Owned by the Run goroutine.
	lastID    string
	retryHint time.Duration
	endEvent  sse.Event
}

// Option configures a Session.
type Option func(*Session)

// WithRetryPolicy sets the reconnect policy. The default is a
// transport.BackoffPolicy with transport.DefaultBackoffConfig.
func WithRetryPolicy(p transport.RetryPolicy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithNewlineMode selects how escaped newlines are rendered.
func WithNewlineMode(mode escape.NewlineMode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithTee records every raw byte of the stream to w.
func WithTee(w io.Writer) Option {
	return func(s *Session) {
		s.tee = w
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New returns an Idle session for req.
func New(t transport.Transport, req *transport.Request, h Handler, opts ...Option) *Session {
	s := &Session{
		transport: t,
		request:   req,
		handler:   h,
		mode:      escape.NewlineLiteral,
		logger:    logger.Nop(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		s.policy = transport.NewBackoffPolicy(transport.DefaultBackoffConfig())
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffer returns the text accumulated so far.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.String()
}

// Err returns the error Run finished with, or nil while running and after a
// successful end.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Abort cancels the session from any goroutine. The transport is closed and
// no callback fires afterwards. Aborting a finished session does nothing.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = Aborted
	cancel, body := s.cancel, s.body
	s.mu.Unlock()

	s.logger.Debug("stream aborted", "from", from.String())

	if cancel != nil {
		cancel()
	}
	if body != nil {
		_ = body.Close()
	}
}

// Run opens the stream and blocks until it ends. It returns nil when the end
// event arrived, ErrClosed when the producer closed early, ErrAborted when
// aborted, and the failure otherwise.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer close(s.done)
	defer cancel()

	err := s.finish(ctx, s.loop(ctx))

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

func (s *Session) loop(ctx context.Context) error {
	attempt := 0
	for {
		if !s.transition(Connecting) {
			return ErrAborted
		}

		req := s.request.Clone()
		if s.lastID != "" {
			if req.Header == nil {
				req.Header = make(map[string][]string)
			}
			req.Header.Set("Last-Event-ID", s.lastID)
		}

		delivered, err := s.connect(ctx, req)
		if err == nil || errors.Is(err, ErrClosed) {
			return err
		}
		if s.aborted() || ctx.Err() != nil {
			return ErrAborted
		}

		switch classify.Error(err) {
		case classify.Fatal:
			return err
		case classify.Unknown:
			return ErrAborted
		}

		if delivered {
			// Progress was made; start a fresh backoff sequence.
			attempt = 0
			s.policy.Reset()
		}
		attempt++

		hint := s.retryHint
		var statusErr *classify.StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			hint = statusErr.RetryAfter
		}

		delay, ok := s.policy.Next(attempt, hint)
		if !ok {
			return fmt.Errorf("%w after %d attempts: %w", transport.ErrRetriesExhausted, attempt-1, err)
		}

		s.logger.Warn("stream interrupted, reconnecting",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if !s.deliver(func() {
			if s.handler.OnRetry != nil {
				s.handler.OnRetry(attempt, delay, err)
			}
		}) {
			return ErrAborted
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrAborted
		case <-timer.C:
		}
	}
}

// connect runs one connection attempt. delivered reports whether at least
// one event was dispatched. A nil error means the end event arrived.
func (s *Session) connect(ctx context.Context, req *transport.Request) (bool, error) {
	resp, err := s.transport.Open(ctx, req)
	if err != nil {
		return false, fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if classify.Open(resp.Status, resp.Header.Get("Content-Type")) != classify.Proceed {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, classify.NewStatusError(resp.Status, resp.Header, string(body))
	}

	s.mu.Lock()
	if s.state == Aborted {
		s.mu.Unlock()
		return false, ErrAborted
	}
	s.body = resp.Body
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.body = nil
		s.mu.Unlock()
	}()

	if !s.transition(Streaming) {
		return false, ErrAborted
	}
	if !s.deliver(func() {
		if s.handler.OnOpen != nil {
			s.handler.OnOpen(resp)
		}
	}) {
		return false, ErrAborted
	}

	reader := sse.NewReader(resp.Body, sse.WithTee(s.tee))
	delivered := false
	for {
		ev, err := reader.Next()
		if id := reader.LastID(); id != "" {
			s.lastID = id
		}
		if r := reader.Retry(); r > 0 {
			s.retryHint = r
		}
		if err != nil {
			return delivered, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return delivered, ErrClosed
		}

		if ev.IsEnd() {
			s.endEvent = *ev
			return true, nil
		}
		if err := s.dispatch(*ev); err != nil {
			return delivered, err
		}
		delivered = true
	}
}

// dispatch applies one non-terminal event.
func (s *Session) dispatch(ev sse.Event) error {
	if !ev.IsMessage() {
		s.logger.Debug("passing through event", "event", ev.Name)
		var err error
		if !s.deliver(func() {
			if s.handler.OnEvent != nil {
				err = s.handler.OnEvent(ev)
			}
		}) {
			return ErrAborted
		}
		return err
	}

	chunk := escape.Unescape(ev.Data, s.mode)

	s.mu.Lock()
	if s.state != Streaming {
		s.mu.Unlock()
		return ErrAborted
	}
	s.buffer.WriteString(chunk)
	buffer := s.buffer.String()
	s.mu.Unlock()

	var err error
	if !s.deliver(func() {
		if s.handler.OnChunk != nil {
			err = s.handler.OnChunk(chunk, buffer)
		}
	}) {
		return ErrAborted
	}
	return err
}

// finish moves the session into its terminal state and fires the matching
// terminal callback.
func (s *Session) finish(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(err, ErrAborted) && err != nil {
		err = ErrAborted
	}

	switch {
	case errors.Is(err, ErrAborted):
		s.mu.Lock()
		if !s.state.Terminal() {
			s.state = Aborted
		}
		s.mu.Unlock()
		return ErrAborted

	case err == nil:
		if !s.transition(Closed) {
			return ErrAborted
		}
		buffer := s.Buffer()
		s.logger.Debug("stream ended", "bytes", len(buffer))
		if s.handler.OnEnd != nil {
			s.handler.OnEnd(buffer, s.endEvent)
		}
		return nil

	case errors.Is(err, ErrClosed):
		if !s.transition(Closed) {
			return ErrAborted
		}
		buffer := s.Buffer()
		s.logger.Warn("stream closed before end event", "bytes", len(buffer))
		if s.handler.OnClose != nil {
			s.handler.OnClose(buffer)
		}
		return ErrClosed

	default:
		if !s.transition(Failed) {
			return ErrAborted
		}
		s.logger.Error("stream failed", "error", err)
		if s.handler.OnError != nil {
			s.handler.OnError(err)
		}
		return err
	}
}

// transition moves to the given state unless the session was aborted.
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	from := s.state
	if from == Aborted {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()

	if from != to {
		s.logger.Debug("stream state", "from", from.String(), "to", to.String())
		if s.handler.OnState != nil {
			s.handler.OnState(from, to)
		}
	}
	return true
}

// deliver runs fn unless the session was aborted and reports whether it ran.
func (s *Session) deliver(fn func()) bool {
	if s.aborted() {
		return false
	}
	fn()
	return true
}

func (s *Session) aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Aborted
}
