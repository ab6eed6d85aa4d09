// Package storage persists conversation history between runs.
package storage

import (
	"context"

	"github.com/papercomputeco/trickle/pkg/conversation"
)

// Driver stores one conversation history. Every Save replaces the stored
// history with the given turns, in order.
type Driver interface {
	// Load returns the stored turns, oldest first. A missing or empty
	// history is not an error and yields no turns.
	Load(ctx context.Context) ([]conversation.Turn, error)

	// Save replaces the stored history.
	Save(ctx context.Context, turns []conversation.Turn) error

	// Clear deletes the stored history.
	Clear(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
