// Package worker persists finalized exchanges off the streaming path.
//
// The controller hands every finalized exchange to the Pool, which saves the
// history snapshot through a storage.Driver and publishes a turn event. A
// single worker drains the queue so saves land in finalization order and an
// older snapshot never overwrites a newer one.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/eventstream"
	"github.com/papercomputeco/trickle/pkg/logger"
	"github.com/papercomputeco/trickle/pkg/storage"
)

var defaultJobQueueSize uint = 64

// ErrQueueFull is returned when a job is dropped because the queue is full.
var ErrQueueFull = errors.New("persistence queue full, job dropped")

// ErrClosed is returned when a job is submitted after Close.
var ErrClosed = errors.New("persistence queue closed")

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for the history. Optional.
	Driver storage.Driver

	// Publisher receives a turn event per finalized exchange. Optional.
	Publisher eventstream.Publisher

	// Source identifies this client in published events.
	Source eventstream.EventSource

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes persistence jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan *conversation.Finalized
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutine.
func NewPool(c *Config) *Pool {
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *conversation.Finalized, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(1)
	go wp.worker()

	return wp
}

// TurnFinalized implements conversation.Sink. It never blocks.
func (p *Pool) TurnFinalized(_ context.Context, f *conversation.Finalized) error {
	return p.enqueue(f)
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or closed, resulting
// in the job being dropped.
func (p *Pool) Enqueue(job *conversation.Finalized) bool {
	return p.enqueue(job) == nil
}

func (p *Pool) enqueue(job *conversation.Finalized) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, queue closed", "reply", job.Reply.ID)
		return ErrClosed
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"reply", job.Reply.ID,
			"status", string(job.Reply.Status),
		)
		return nil
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"reply", job.Reply.ID,
		)
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued jobs to drain.
// Call this during shutdown after the controller has finished.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker() {
	defer p.wg.Done()
	p.logger.Debug("persistence worker started")

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("persistence worker stopped")
}

// processJob saves the history snapshot and publishes the turn event. Errors
// are logged; a failed save does not prevent publishing.
func (p *Pool) processJob(job *conversation.Finalized) {
	ctx := context.Background()

	if p.config.Driver != nil && job.History != nil {
		if err := p.config.Driver.Save(ctx, job.History); err != nil {
			p.logger.Error("history save failed",
				"reply", job.Reply.ID,
				"error", err,
			)
		} else {
			p.logger.Debug("history saved",
				"reply", job.Reply.ID,
				"turns", len(job.History),
			)
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewTurnFinalizedEvent(job, p.config.Source)
		if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
			p.logger.Warn("failed to publish turn event",
				"reply", job.Reply.ID,
				"error", err,
			)
		}
	}
}
