// Package nop provides a Publisher that drops events. It backs the disabled
// eventstream mode and counts what it drops so tests can assert delivery.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/trickle/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct {
	published atomic.Int64
}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn validates input and counts the event.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnFinalizedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurn
	}

	p.published.Add(1)
	return nil
}

// Published returns the number of events accepted.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
