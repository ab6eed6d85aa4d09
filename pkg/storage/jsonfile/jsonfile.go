// Package jsonfile provides a history driver backed by a single JSON file,
// by default .trickle/history.json.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/storage"
)

const formatVersion = 1

type document struct {
	Version int                 `json:"version"`
	Turns   []conversation.Turn `json:"turns"`
}

// Driver implements storage.Driver on a JSON file. Saves replace the file
// atomically so concurrent readers never observe a partial write.
type Driver struct {
	mu   sync.Mutex
	path string
}

// NewDriver returns a driver for path. The file need not exist.
func NewDriver(path string) *Driver {
	return &Driver{path: path}
}

// Path returns the history file path.
func (d *Driver) Path() string {
	return d.path
}

// Load reads the history file. A missing file yields no turns.
func (d *Driver) Load(_ context.Context) ([]conversation.Turn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load()
}

func (d *Driver) load() ([]conversation.Turn, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []conversation.Turn{}, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if len(data) == 0 {
		return []conversation.Turn{}, nil
	}

	doc := document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("history format version %d is newer than supported version %d", doc.Version, formatVersion)
	}
	if doc.Turns == nil {
		doc.Turns = []conversation.Turn{}
	}

	return doc.Turns, nil
}

// Save writes turns to a temporary file and renames it over the history file.
func (d *Driver) Save(_ context.Context, turns []conversation.Turn) error {
	if turns == nil {
		return storage.ErrNilHistory
	}

	data, err := json.MarshalIndent(document{Version: formatVersion, Turns: turns}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("creating temporary history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("replacing history: %w", err)
	}

	return nil
}

// Clear removes the history file. A missing file is already clear.
func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

// Watch calls fn with the current history and again each time the file is
// replaced or written, until ctx is done. It returns ctx.Err() on
// cancellation.
func (d *Driver) Watch(ctx context.Context, fn func([]conversation.Turn)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating history watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching history dir: %w", err)
	}

	emit := func() error {
		turns, err := d.Load(ctx)
		if err != nil {
			return err
		}
		fn(turns)
		return nil
	}

	if err := emit(); err != nil {
		return err
	}

	target := filepath.Clean(d.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if err := emit(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("history watcher error: %w", err)
		}
	}
}
