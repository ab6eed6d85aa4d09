// Package inmemory provides a storage.Driver that keeps history in memory.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/storage"
)

// Driver implements storage.Driver with a slice guarded by a mutex.
type Driver struct {
	mu    sync.RWMutex
	turns []conversation.Turn
	saves int
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Load returns a copy of the stored turns.
func (d *Driver) Load(_ context.Context) ([]conversation.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]conversation.Turn, len(d.turns))
	copy(out, d.turns)
	return out, nil
}

// Save replaces the stored turns with a copy of turns.
func (d *Driver) Save(_ context.Context, turns []conversation.Turn) error {
	if turns == nil {
		return storage.ErrNilHistory
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.turns = make([]conversation.Turn, len(turns))
	copy(d.turns, turns)
	d.saves++
	return nil
}

// Clear drops the stored turns.
func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.turns = nil
	return nil
}

// Saves returns how many times Save succeeded.
func (d *Driver) Saves() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.saves
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
